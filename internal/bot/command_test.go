package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand_Keywords(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want Kind
	}{
		{"/start", KindHelp},
		{"/help", KindHelp},
		{"help", KindHelp},
		{"帮助", KindHelp},
		{"/HELP", KindHelp},
		{"/list", KindList},
		{"列表", KindList},
		{"/expiring", KindExpiring},
		{"到期", KindExpiring},
		{"/cancel", KindCancel},
		{"cancel", KindCancel},
		{"取消", KindCancel},
		{"/add", KindAddBare},
		{"/add   ", KindAddBare},
		{"gmail", KindText},
		{"/delete 1", KindText},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(now, tt.in).Kind)
		})
	}
}

func TestParseCommand_AddNamed(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cmd := ParseCommand(now, "/add Gmail 工作")
	assert.Equal(t, KindAddNamed, cmd.Kind)
	assert.Equal(t, "Gmail 工作", cmd.Name)
}

func TestParseCommand_Delete(t *testing.T) {
	t.Parallel()

	now := time.Now()

	cmd := ParseCommand(now, "/del 42")
	assert.Equal(t, KindDelete, cmd.Kind)
	assert.Equal(t, int64(42), cmd.ID)

	// A non-numeric argument falls through to free text.
	cmd = ParseCommand(now, "/del gmail")
	assert.Equal(t, KindText, cmd.Kind)
	assert.Equal(t, "/del gmail", cmd.Text)
}

func TestParseCommand_LongText(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	cmd := ParseCommand(now, "#存 服务器密钥\n-----BEGIN KEY-----\nabc")
	require.Equal(t, KindLongText, cmd.Kind)
	assert.Equal(t, "服务器密钥", cmd.Name)
	assert.Equal(t, "-----BEGIN KEY-----\nabc", cmd.Body)
	assert.Nil(t, cmd.Date)
}

func TestParseCommand_LongTextWithDate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	cmd := ParseCommand(now, "#存 证书@2026-12-31\ncontent here")
	require.Equal(t, KindLongText, cmd.Kind)
	assert.Equal(t, "证书", cmd.Name)
	assert.Equal(t, "content here", cmd.Body)
	require.NotNil(t, cmd.Date)
	assert.Equal(t, "2026-12-31", *cmd.Date)
}

func TestParseCommand_LongTextMissingBody(t *testing.T) {
	t.Parallel()

	cmd := ParseCommand(time.Now(), "#存 只有名称")
	assert.Equal(t, KindLongText, cmd.Kind)
	assert.Empty(t, cmd.Name)
	assert.Empty(t, cmd.Body)
}

func TestParseCommand_LongTextBadDateSuffix(t *testing.T) {
	t.Parallel()

	// An unparseable @date suffix is stripped but yields no expiry.
	cmd := ParseCommand(time.Now(), "#存 key@99-99\nbody")
	require.Equal(t, KindLongText, cmd.Kind)
	assert.Equal(t, "key", cmd.Name)
	assert.Nil(t, cmd.Date)
}
