// Package bot interprets free-form chat text as vault commands and drives
// the multi-step secret-creation dialogue. Parsing (command.go) and state
// transitions (engine.go) are kept separate so both stay testable.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dkravets/keychat/internal/common"
	"github.com/dkravets/keychat/internal/logging"
	"github.com/dkravets/keychat/internal/models"
	"github.com/dkravets/keychat/internal/vault"
	"github.com/dkravets/keychat/internal/wecom"
)

const searchLimit = 5

const helpText = `🔐 密码管理助手

📝 保存：发送 /add 开始引导
📄 长文本：#存 名称
内容
🔍 搜索：发送关键词
📋 列表：发送 /list
⏰ 到期：发送 /expiring
🗑 删除：发送 /del 编号
❌ 取消：发送 /cancel

🔒 AES加密 ⏰ 到期提醒`

// Engine is the per-user conversation state machine. All data operations
// go through the vault; the engine itself holds no state between calls.
type Engine struct {
	vault *vault.Service
	log   logging.Logger
	now   func() time.Time
}

func NewEngine(v *vault.Service, logger logging.Logger) *Engine {
	return &Engine{vault: v, log: logger, now: time.Now}
}

// HandleEvent maps menu clicks onto fixed commands, bypassing text
// parsing entirely.
func (e *Engine) HandleEvent(ctx context.Context, userID, eventKey string) (string, error) {
	switch eventKey {
	case wecom.MenuKeyList:
		return e.list(ctx, userID)
	case wecom.MenuKeyAdd:
		return e.startAdd(ctx, userID)
	case wecom.MenuKeyExpiring:
		return e.expiring(ctx)
	case wecom.MenuKeyHelp:
		return helpText, nil
	default:
		return "", nil
	}
}

// HandleText processes one chat message and returns the reply, or "" for
// no reply. Keyword commands win over an active dialogue; cancel always
// clears the session.
func (e *Engine) HandleText(ctx context.Context, userID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	cmd := ParseCommand(e.now(), text)
	switch cmd.Kind {
	case KindHelp:
		return helpText, nil
	case KindList:
		return e.list(ctx, userID)
	case KindExpiring:
		return e.expiring(ctx)
	case KindCancel:
		if err := e.vault.ClearSession(ctx, userID); err != nil {
			return "", err
		}
		return "✅ 已取消", nil
	case KindAddBare:
		return e.startAdd(ctx, userID)
	case KindAddNamed:
		session := models.Session{Step: models.StepAskSite, Name: cmd.Name}
		if err := e.vault.SetSession(ctx, userID, session); err != nil {
			return "", err
		}
		return fmt.Sprintf("📝 保存「%s」\n\n🌐 请输入网站：", cmd.Name), nil
	case KindDelete:
		return e.deleteByID(ctx, cmd.ID)
	case KindLongText:
		return e.saveLongText(ctx, cmd)
	}

	session, err := e.vault.GetSession(ctx, userID)
	if err != nil {
		return "", err
	}
	if !session.Idle() {
		return e.handleStep(ctx, userID, text, session)
	}
	return e.search(ctx, userID, text)
}

func (e *Engine) startAdd(ctx context.Context, userID string) (string, error) {
	if err := e.vault.SetSession(ctx, userID, models.Session{Step: models.StepAskName}); err != nil {
		return "", err
	}
	return "📝 添加新密码\n\n🏷️ 请输入名称：", nil
}

// handleStep routes text into the active dialogue step. Each handler
// stores the input, advances the step, persists the session and returns
// the next prompt.
func (e *Engine) handleStep(ctx context.Context, userID, text string, session models.Session) (string, error) {
	advance := func(next models.Step, prompt string) (string, error) {
		session.Step = next
		if err := e.vault.SetSession(ctx, userID, session); err != nil {
			return "", err
		}
		return prompt, nil
	}

	switch session.Step {
	case models.StepPicking:
		return e.handlePicking(ctx, userID, text, session)

	case models.StepAskName:
		session.Name = text
		return advance(models.StepAskSite, "🌐 请输入网站：")

	case models.StepAskSite:
		session.Site = text
		return advance(models.StepAskAccount, "👤 请输入账号：")

	case models.StepAskAccount:
		session.Account = text
		return advance(models.StepAskPassword, "🔑 请输入密码：")

	case models.StepAskPassword:
		session.Password = text
		return advance(models.StepAskExpiry, "📅 设置到期时间？\n\n回复日期（如 2025-12-31）或\"否\"跳过")

	case models.StepAskExpiry:
		if isSkip(text) {
			session.ExpiresAt = nil
		} else {
			d, ok := ParseDate(e.now(), text)
			if !ok {
				// Re-prompt without advancing state.
				return "❓ 日期格式不对，请输入如 2025-12-31 或 12-31", nil
			}
			session.ExpiresAt = &d
		}
		return advance(models.StepAskExtra, "📝 添加备注？\n\n输入备注内容或\"否\"跳过")

	case models.StepAskExtra:
		if isSkip(text) {
			session.Extra = nil
		} else {
			session.Extra = &text
		}
		return e.finishSave(ctx, userID, session)

	default:
		return helpText, nil
	}
}

// handlePicking interprets text as a 1-based index into the list shown
// previously; anything out of range or non-numeric becomes a fresh
// search.
func (e *Engine) handlePicking(ctx context.Context, userID, text string, session models.Session) (string, error) {
	idx, err := strconv.Atoi(text)
	if err == nil && idx >= 1 && idx <= len(session.PickingIDs) {
		if err := e.vault.ClearSession(ctx, userID); err != nil {
			return "", err
		}
		return e.detail(ctx, session.PickingIDs[idx-1])
	}

	if err := e.vault.ClearSession(ctx, userID); err != nil {
		return "", err
	}
	return e.search(ctx, userID, text)
}

func (e *Engine) finishSave(ctx context.Context, userID string, session models.Session) (string, error) {
	_, err := e.vault.SaveSecret(ctx, vault.SaveSecretInput{
		Name:      session.Name,
		Site:      session.Site,
		Account:   session.Account,
		Password:  session.Password,
		Extra:     session.Extra,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		return "", err
	}

	if err := e.vault.ClearSession(ctx, userID); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ 保存成功！\n\n🏷️ %s\n🌐 %s\n👤 %s\n🔑 ******", session.Name, session.Site, session.Account)
	if session.Extra != nil {
		b.WriteString("\n📝 " + *session.Extra)
	}
	if session.ExpiresAt != nil {
		b.WriteString("\n📅 " + *session.ExpiresAt)
	}
	return b.String(), nil
}

func (e *Engine) search(ctx context.Context, userID, keyword string) (string, error) {
	results, err := e.vault.Search(ctx, keyword, searchLimit)
	if err != nil {
		return "", err
	}

	switch len(results) {
	case 0:
		return fmt.Sprintf("❓ 没有找到「%s」\n\n发送 /add 添加新密码", keyword), nil
	case 1:
		return e.detail(ctx, results[0].ID)
	}

	ids := make([]int64, len(results))
	lines := make([]string, len(results))
	for i := range results {
		ids[i] = results[i].ID
		lines[i] = fmt.Sprintf("%d. %s (%s)", i+1, results[i].Name, results[i].Site)
	}

	session := models.Session{Step: models.StepPicking, PickingIDs: ids}
	if err := e.vault.SetSession(ctx, userID, session); err != nil {
		return "", err
	}

	return fmt.Sprintf("🔍 找到 %d 条：\n\n%s\n\n回复序号查看详情", len(results), strings.Join(lines, "\n")), nil
}

func (e *Engine) detail(ctx context.Context, id int64) (string, error) {
	d, err := e.vault.Detail(ctx, id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return "❌ 不存在", nil
	case errors.Is(err, common.ErrCrypto):
		e.log.Error(ctx, "secret unreadable", "id", id, "error", err)
		return "⚠️ 记录无法解密", nil
	case err != nil:
		return "", err
	}

	info := ExpiryInfo(e.now(), d.ExpiresAt)
	if d.IsRaw {
		return fmt.Sprintf("🔐 %s\n\n%s%s", d.Name, d.Password, info), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔐 %s\n🌐 %s\n👤 %s\n🔑 %s", d.Name, d.Site, d.Account, d.Password)
	if d.Extra != nil {
		b.WriteString("\n📝 " + *d.Extra)
	}
	b.WriteString(info)
	return b.String(), nil
}

func (e *Engine) deleteByID(ctx context.Context, id int64) (string, error) {
	d, err := e.vault.Detail(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return "❌ 不存在", nil
	}
	if err != nil && !errors.Is(err, common.ErrCrypto) {
		return "", err
	}

	if err := e.vault.Delete(ctx, id); err != nil {
		return "", err
	}
	if d != nil {
		return fmt.Sprintf("🗑️ 已删除「%s」", d.Name), nil
	}
	return "🗑️ 已删除", nil
}

func (e *Engine) saveLongText(ctx context.Context, cmd Command) (string, error) {
	if cmd.Body == "" && cmd.Name == "" {
		return "❓ 格式：#存 名称\n内容", nil
	}

	body := CleanText(cmd.Body)
	if cmd.Name == "" || body == "" {
		return "❓ 名称和内容不能为空", nil
	}

	if _, err := e.vault.SaveLongText(ctx, cmd.Name, body, cmd.Date); err != nil {
		return "", err
	}

	reply := fmt.Sprintf("✅ 已保存「%s」", cmd.Name)
	if cmd.Date != nil {
		reply += "\n📅 " + *cmd.Date
	}
	return reply, nil
}

func (e *Engine) list(ctx context.Context, userID string) (string, error) {
	rows, err := e.vault.List(ctx)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "📭 没有数据", nil
	}

	now := e.now()
	ids := make([]int64, len(rows))
	lines := make([]string, len(rows))
	for i := range rows {
		prefix := ""
		if rows[i].ExpiresAt != nil {
			if days, ok := DaysUntil(now, *rows[i].ExpiresAt); ok {
				if days <= 0 {
					prefix = "⚠️ "
				} else if days <= 7 {
					prefix = "🔴 "
				}
			}
		}
		ids[i] = rows[i].ID
		lines[i] = fmt.Sprintf("%d. %s%s (%s)", i+1, prefix, rows[i].Name, rows[i].Site)
	}

	session := models.Session{Step: models.StepPicking, PickingIDs: ids}
	if err := e.vault.SetSession(ctx, userID, session); err != nil {
		return "", err
	}

	return fmt.Sprintf("📋 共 %d 条：\n\n%s\n\n回复序号查看详情", len(rows), strings.Join(lines, "\n")), nil
}

func (e *Engine) expiring(ctx context.Context) (string, error) {
	rows, err := e.vault.Expiring(ctx, 30)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "✅ 30天内没有到期", nil
	}

	now := e.now()
	lines := make([]string, 0, len(rows))
	for i := range rows {
		if rows[i].ExpiresAt == nil {
			continue
		}
		days, ok := DaysUntil(now, *rows[i].ExpiresAt)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s (%d天)", expiryIcon(days), rows[i].Name, days))
	}

	return "⏰ 即将到期：\n\n" + strings.Join(lines, "\n"), nil
}

// Reminder renders the weekly digest of secrets due within 7 days.
// Returns "" when nothing qualifies.
func (e *Engine) Reminder(ctx context.Context) (string, error) {
	rows, err := e.vault.Expiring(ctx, 7)
	if err != nil {
		return "", err
	}
	return RenderReminder(e.now(), rows), nil
}

// isSkip recognizes the negative affirmatives that skip an optional step.
func isSkip(text string) bool {
	switch strings.ToLower(text) {
	case "否", "不", "no":
		return true
	}
	return false
}
