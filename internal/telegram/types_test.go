package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		command string
		args    string
		ok      bool
	}{
		{"bare command", "/start", "start", "", true},
		{"command with args", "/generate a red bicycle", "generate", "a red bicycle", true},
		{"bot mention", "/generate@PaintMeBot a red bicycle", "generate", "a red bicycle", true},
		{"bare mention", "/cancel@PaintMeBot", "cancel", "", true},
		{"uppercase normalized", "/Generate sunset", "generate", "sunset", true},
		{"surrounding whitespace", "  /start  ", "start", "", true},
		{"args whitespace trimmed", "/generate   sunset over water  ", "generate", "sunset over water", true},
		{"plain text", "a red bicycle", "", "", false},
		{"lone slash", "/", "", "", false},
		{"empty", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, args, ok := ParseCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.command, command)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestChatIsGroup(t *testing.T) {
	assert.False(t, Chat{Type: "private"}.IsGroup())
	assert.True(t, Chat{Type: "group"}.IsGroup())
	assert.True(t, Chat{Type: "supergroup"}.IsGroup())
	assert.False(t, Chat{Type: "channel"}.IsGroup())
}
