package bot

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/dkravets/keychat/internal/cryptox"
	"github.com/dkravets/keychat/internal/logging"
	"github.com/dkravets/keychat/internal/repositories/secrets"
	"github.com/dkravets/keychat/internal/repositories/sessions"
	"github.com/dkravets/keychat/internal/vault"
)

func setupEngine(t *testing.T) (*Engine, *vault.Service) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE secrets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  site TEXT NOT NULL DEFAULT '',
  account TEXT NOT NULL DEFAULT '',
  password TEXT NOT NULL DEFAULT '',
  extra TEXT,
  expires_at TEXT,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE sessions (
  user_id TEXT PRIMARY KEY,
  step TEXT NOT NULL,
  data TEXT NOT NULL,
  updated_at DATETIME NOT NULL
);
`)
	require.NoError(t, err)

	v := vault.NewService(
		secrets.NewSQLiteRepository(db),
		sessions.NewSQLiteRepository(db),
		cryptox.NewCipher(),
		"test-encrypt-key",
	)
	return NewEngine(v, logging.NewJSON(io.Discard)), v
}

func send(t *testing.T, e *Engine, user, text string) string {
	t.Helper()
	reply, err := e.HandleText(context.Background(), user, text)
	require.NoError(t, err)
	return reply
}

func TestEngine_Help(t *testing.T) {
	e, _ := setupEngine(t)

	for _, in := range []string{"/help", "/start", "帮助"} {
		assert.Equal(t, helpText, send(t, e, "u1", in))
	}
}

func TestEngine_AddFlow(t *testing.T) {
	e, _ := setupEngine(t)

	reply := send(t, e, "u1", "/add")
	assert.Contains(t, reply, "🏷️")

	reply = send(t, e, "u1", "Gmail")
	assert.Contains(t, reply, "🌐")

	reply = send(t, e, "u1", "mail.google.com")
	assert.Contains(t, reply, "👤")

	reply = send(t, e, "u1", "alice@gmail.com")
	assert.Contains(t, reply, "🔑")

	reply = send(t, e, "u1", "p@ssw0rd")
	assert.Contains(t, reply, "📅")

	expiry := time.Now().AddDate(0, 2, 0).Format("2006-01-02")
	reply = send(t, e, "u1", expiry)
	assert.Contains(t, reply, "📝")

	reply = send(t, e, "u1", "工作邮箱")
	assert.Contains(t, reply, "✅ 保存成功")
	assert.Contains(t, reply, "Gmail")
	assert.Contains(t, reply, "******")
	assert.NotContains(t, reply, "p@ssw0rd")

	// The saved record is searchable and decrypts in full.
	detail := send(t, e, "u1", "Gmail")
	assert.Contains(t, detail, "alice@gmail.com")
	assert.Contains(t, detail, "p@ssw0rd")
	assert.Contains(t, detail, "工作邮箱")
}

func TestEngine_AddNamedSkipsNameStep(t *testing.T) {
	e, _ := setupEngine(t)

	reply := send(t, e, "u1", "/add GitHub")
	assert.Contains(t, reply, "GitHub")
	assert.Contains(t, reply, "🌐")
}

func TestEngine_AddFlow_SkipOptionals(t *testing.T) {
	e, _ := setupEngine(t)

	send(t, e, "u1", "/add Box")
	send(t, e, "u1", "box.com")
	send(t, e, "u1", "bob")
	send(t, e, "u1", "pw")
	send(t, e, "u1", "no")
	reply := send(t, e, "u1", "否")

	assert.Contains(t, reply, "✅ 保存成功")
	assert.NotContains(t, reply, "📅")
	assert.NotContains(t, reply, "📝 ")
}

func TestEngine_AddFlow_BadDateReprompts(t *testing.T) {
	e, _ := setupEngine(t)

	send(t, e, "u1", "/add Site")
	send(t, e, "u1", "site.com")
	send(t, e, "u1", "acc")
	send(t, e, "u1", "pw")

	reply := send(t, e, "u1", "13-50")
	assert.Contains(t, reply, "❓ 日期格式不对")

	// Still at the expiry step; a valid answer moves on.
	reply = send(t, e, "u1", "否")
	assert.Contains(t, reply, "📝")
}

func TestEngine_Cancel(t *testing.T) {
	e, _ := setupEngine(t)

	send(t, e, "u1", "/add Gmail")
	reply := send(t, e, "u1", "/cancel")
	assert.Equal(t, "✅ 已取消", reply)

	// Back to idle: free text searches instead of feeding the dialogue.
	reply = send(t, e, "u1", "nothing-stored")
	assert.Contains(t, reply, "❓ 没有找到")
}

func TestEngine_CommandWinsOverDialogue(t *testing.T) {
	e, _ := setupEngine(t)

	send(t, e, "u1", "/add Gmail")
	reply := send(t, e, "u1", "/help")
	assert.Equal(t, helpText, reply)
}

func TestEngine_SearchPicking(t *testing.T) {
	e, v := setupEngine(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := v.SaveSecret(ctx, vault.SaveSecretInput{
			Name:     fmt.Sprintf("mail-%d", i),
			Site:     "example.com",
			Account:  fmt.Sprintf("acc-%d", i),
			Password: fmt.Sprintf("pw-%d", i),
		})
		require.NoError(t, err)
	}

	reply := send(t, e, "u1", "mail")
	assert.Contains(t, reply, "🔍 找到 3 条")
	assert.Contains(t, reply, "回复序号查看详情")

	// Results are newest first, so index 2 is mail-2.
	detail := send(t, e, "u1", "2")
	assert.Contains(t, detail, "mail-2")
	assert.Contains(t, detail, "pw-2")
}

func TestEngine_PickingFallsBackToSearch(t *testing.T) {
	e, v := setupEngine(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := v.SaveSecret(ctx, vault.SaveSecretInput{
			Name: fmt.Sprintf("vpn-%d", i), Site: "s", Account: "a", Password: "p",
		})
		require.NoError(t, err)
	}
	_, err := v.SaveSecret(ctx, vault.SaveSecretInput{
		Name: "router", Site: "s", Account: "a", Password: "p",
	})
	require.NoError(t, err)

	reply := send(t, e, "u1", "vpn")
	assert.Contains(t, reply, "🔍 找到 2 条")

	// A non-index answer becomes a fresh search.
	detail := send(t, e, "u1", "router")
	assert.Contains(t, detail, "router")

	// An out-of-range index does too.
	send(t, e, "u1", "vpn")
	reply = send(t, e, "u1", "9")
	assert.Contains(t, reply, "❓ 没有找到")
}

func TestEngine_SingleMatchShowsDetail(t *testing.T) {
	e, v := setupEngine(t)

	_, err := v.SaveSecret(context.Background(), vault.SaveSecretInput{
		Name: "bank", Site: "bank.com", Account: "alice", Password: "s3cret",
	})
	require.NoError(t, err)

	reply := send(t, e, "u1", "bank")
	assert.Contains(t, reply, "🔐 bank")
	assert.Contains(t, reply, "s3cret")
}

func TestEngine_LongText(t *testing.T) {
	e, _ := setupEngine(t)

	reply := send(t, e, "u1", "#存 服务器密钥\n```\n-----BEGIN KEY-----\nabc\n```")
	assert.Contains(t, reply, "✅ 已保存「服务器密钥」")

	detail := send(t, e, "u1", "服务器密钥")
	assert.Contains(t, detail, "-----BEGIN KEY-----\nabc")
	// Code fences were cleaned before storage.
	assert.NotContains(t, detail, "```")
}

func TestEngine_LongTextUsageHint(t *testing.T) {
	e, _ := setupEngine(t)

	reply := send(t, e, "u1", "#存 只有名称")
	assert.Contains(t, reply, "❓ 格式")

	reply = send(t, e, "u1", "#存 \ncontent")
	assert.Contains(t, reply, "❓ 名称和内容不能为空")
}

func TestEngine_Delete(t *testing.T) {
	e, v := setupEngine(t)

	id, err := v.SaveSecret(context.Background(), vault.SaveSecretInput{
		Name: "obsolete", Site: "s", Account: "a", Password: "p",
	})
	require.NoError(t, err)

	reply := send(t, e, "u1", fmt.Sprintf("/del %d", id))
	assert.Contains(t, reply, "🗑️ 已删除「obsolete」")

	reply = send(t, e, "u1", "/del 9999")
	assert.Equal(t, "❌ 不存在", reply)
}

func TestEngine_List(t *testing.T) {
	e, v := setupEngine(t)

	assert.Equal(t, "📭 没有数据", send(t, e, "u1", "/list"))

	_, err := v.SaveSecret(context.Background(), vault.SaveSecretInput{
		Name: "only", Site: "s", Account: "a", Password: "p",
	})
	require.NoError(t, err)

	reply := send(t, e, "u1", "/list")
	assert.Contains(t, reply, "📋 共 1 条")
	assert.Contains(t, reply, "only")

	// The list doubles as a picking prompt.
	detail := send(t, e, "u1", "1")
	assert.Contains(t, detail, "🔐 only")
}

func TestEngine_Expiring(t *testing.T) {
	e, v := setupEngine(t)
	ctx := context.Background()

	assert.Equal(t, "✅ 30天内没有到期", send(t, e, "u1", "/expiring"))

	soon := time.Now().AddDate(0, 0, 5).Format("2006-01-02")
	far := time.Now().AddDate(1, 0, 0).Format("2006-01-02")

	_, err := v.SaveSecret(ctx, vault.SaveSecretInput{
		Name: "cert", Site: "s", Account: "a", Password: "p", ExpiresAt: &soon,
	})
	require.NoError(t, err)
	_, err = v.SaveSecret(ctx, vault.SaveSecretInput{
		Name: "faraway", Site: "s", Account: "a", Password: "p", ExpiresAt: &far,
	})
	require.NoError(t, err)

	reply := send(t, e, "u1", "/expiring")
	assert.Contains(t, reply, "⏰ 即将到期")
	assert.Contains(t, reply, "cert")
	assert.NotContains(t, reply, "faraway")
}

func TestEngine_HandleEvent(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()

	reply, err := e.HandleEvent(ctx, "u1", "CMD_HELP")
	require.NoError(t, err)
	assert.Equal(t, helpText, reply)

	reply, err = e.HandleEvent(ctx, "u1", "CMD_ADD")
	require.NoError(t, err)
	assert.Contains(t, reply, "🏷️")

	reply, err = e.HandleEvent(ctx, "u1", "CMD_LIST")
	require.NoError(t, err)
	assert.Equal(t, "📭 没有数据", reply)

	reply, err = e.HandleEvent(ctx, "u1", "UNKNOWN_KEY")
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestEngine_SessionsArePerUser(t *testing.T) {
	e, _ := setupEngine(t)

	send(t, e, "u1", "/add Gmail")

	// Another user's text does not feed u1's dialogue.
	reply := send(t, e, "u2", "unrelated")
	assert.Contains(t, reply, "❓ 没有找到")

	reply = send(t, e, "u1", "gmail.com")
	assert.Contains(t, reply, "👤")
}

func TestEngine_Reminder(t *testing.T) {
	e, v := setupEngine(t)
	ctx := context.Background()

	digest, err := e.Reminder(ctx)
	require.NoError(t, err)
	assert.Empty(t, digest)

	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	_, err = v.SaveSecret(ctx, vault.SaveSecretInput{
		Name: "expiring-cert", Site: "s", Account: "a", Password: "p", ExpiresAt: &tomorrow,
	})
	require.NoError(t, err)

	digest, err = e.Reminder(ctx)
	require.NoError(t, err)
	assert.Contains(t, digest, "⏰ 到期提醒")
	assert.Contains(t, digest, "expiring-cert")
}
