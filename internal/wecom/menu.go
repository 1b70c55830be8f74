package wecom

import (
	"context"
	"fmt"
	"net/url"
)

// Menu click keys dispatched ahead of any text parsing.
const (
	MenuKeyList     = "CMD_LIST"
	MenuKeyAdd      = "CMD_ADD"
	MenuKeyExpiring = "CMD_EXPIRING"
	MenuKeyHelp     = "CMD_HELP"
)

// MenuButton is one entry of the application menu.
type MenuButton struct {
	Name      string       `json:"name"`
	Type      string       `json:"type,omitempty"`
	Key       string       `json:"key,omitempty"`
	URL       string       `json:"url,omitempty"`
	SubButton []MenuButton `json:"sub_button,omitempty"`
}

// Menu is the full application menu.
type Menu struct {
	Button []MenuButton `json:"button"`
}

// DefaultMenu is the menu the bot installs: list and add on the top level,
// expiring and help folded under "more".
func DefaultMenu() Menu {
	return Menu{Button: []MenuButton{
		{Name: "📋 列表", Type: "click", Key: MenuKeyList},
		{Name: "➕ 添加", Type: "click", Key: MenuKeyAdd},
		{Name: "更多", SubButton: []MenuButton{
			{Name: "⏰ 到期提醒", Type: "click", Key: MenuKeyExpiring},
			{Name: "❓ 帮助", Type: "click", Key: MenuKeyHelp},
		}},
	}}
}

// CreateMenu installs menu for the application.
func (c *Client) CreateMenu(ctx context.Context, menu Menu) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/menu/create?access_token=%s&agentid=%d",
		c.cfg.APIBase, url.QueryEscape(token), c.cfg.AgentID)

	var resp APIError
	if err := c.postJSON(ctx, u, menu, &resp); err != nil {
		return fmt.Errorf("failed to create menu: %w", err)
	}
	if resp.Code != 0 {
		return fmt.Errorf("failed to create menu: %w", &resp)
	}
	return nil
}

// GetMenu fetches the currently installed menu.
func (c *Client) GetMenu(ctx context.Context) (*Menu, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/menu/get?access_token=%s&agentid=%d",
		c.cfg.APIBase, url.QueryEscape(token), c.cfg.AgentID)

	var resp struct {
		APIError
		Button []MenuButton `json:"button"`
	}
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("failed to get menu: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("failed to get menu: %w", &resp.APIError)
	}
	return &Menu{Button: resp.Button}, nil
}

// DeleteMenu removes the installed menu.
func (c *Client) DeleteMenu(ctx context.Context) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/menu/delete?access_token=%s&agentid=%d",
		c.cfg.APIBase, url.QueryEscape(token), c.cfg.AgentID)

	var resp APIError
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return fmt.Errorf("failed to delete menu: %w", err)
	}
	if resp.Code != 0 {
		return fmt.Errorf("failed to delete menu: %w", &resp)
	}
	return nil
}
