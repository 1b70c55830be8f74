package bot

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind tags a parsed chat command.
type Kind int

const (
	// KindText is the fallthrough: free text routed to the active session
	// step or to search.
	KindText Kind = iota
	KindHelp
	KindList
	KindExpiring
	KindCancel
	KindAddBare
	KindAddNamed
	KindDelete
	KindLongText
)

// Command is the parsed form of one inbound chat message. Parsing is
// side-effect free; the engine applies state transitions separately.
type Command struct {
	Kind Kind
	Name string  // AddNamed, LongText
	ID   int64   // Delete
	Date *string // LongText, optional @date suffix
	Body string  // LongText content after the first newline
	Text string  // KindText original text
}

// longTextMarker introduces a long-text save: "#存 name\ncontent".
const longTextMarker = "#存"

var longTextDateSuffix = regexp.MustCompile(`@([\d\-/]+)$`)

// ParseCommand classifies one message. Keyword commands accept bilingual
// synonyms; anything unrecognized stays free text.
func ParseCommand(now time.Time, text string) Command {
	switch strings.ToLower(text) {
	case "/start", "/help", "help", "帮助":
		return Command{Kind: KindHelp}
	case "/list", "列表":
		return Command{Kind: KindList}
	case "/expiring", "到期":
		return Command{Kind: KindExpiring}
	case "/cancel", "cancel", "取消":
		return Command{Kind: KindCancel}
	case "/add":
		return Command{Kind: KindAddBare}
	}

	if name, ok := strings.CutPrefix(text, "/add "); ok {
		name = strings.TrimSpace(name)
		if name == "" {
			return Command{Kind: KindAddBare}
		}
		return Command{Kind: KindAddNamed, Name: name}
	}

	if arg, ok := strings.CutPrefix(text, "/del "); ok {
		if id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64); err == nil {
			return Command{Kind: KindDelete, ID: id}
		}
	}

	if strings.HasPrefix(text, longTextMarker) {
		return parseLongText(now, text)
	}

	return Command{Kind: KindText, Text: text}
}

func parseLongText(now time.Time, text string) Command {
	cmd := Command{Kind: KindLongText}

	nl := strings.Index(text, "\n")
	if nl == -1 {
		// Missing body; the engine answers with a usage hint.
		return cmd
	}

	name := strings.TrimSpace(text[len(longTextMarker):nl])
	if m := longTextDateSuffix.FindStringSubmatch(name); m != nil {
		if d, ok := ParseDate(now, m[1]); ok {
			cmd.Date = &d
		}
		name = strings.TrimSpace(strings.TrimSuffix(name, m[0]))
	}

	cmd.Name = name
	cmd.Body = text[nl+1:]
	return cmd
}
