package model

import (
	"fmt"
	"net/url"
	"strings"
)

// ItemURIScheme is the custom URI scheme used to hand items to the application.
const ItemURIScheme = "nxm"

// ItemURI is an item reference passed on the command line, e.g.
// "nxm://skyrim/mods/1/files/2". The host segment is the game mode ID.
type ItemURI struct {
	Raw    string
	ModeID string
	Path   string
}

// ParseItemURI parses and validates an item URI.
func ParseItemURI(s string) (ItemURI, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ItemURI{}, fmt.Errorf("item uri cannot be empty: %w", ErrNotValid)
	}

	u, err := url.Parse(s)
	if err != nil {
		return ItemURI{}, fmt.Errorf("invalid item uri %q: %w", s, ErrNotValid)
	}

	if !strings.EqualFold(u.Scheme, ItemURIScheme) {
		return ItemURI{}, fmt.Errorf("item uri %q must use the %s scheme: %w", s, ItemURIScheme, ErrNotValid)
	}

	modeID := strings.ToLower(u.Host)
	if modeID == "" {
		return ItemURI{}, fmt.Errorf("item uri %q is missing the game mode: %w", s, ErrNotValid)
	}

	return ItemURI{
		Raw:    s,
		ModeID: modeID,
		Path:   strings.Trim(u.Path, "/"),
	}, nil
}

// FileName returns a file name derived from the item path, used to store the item locally.
// Path separators of any platform and dot segments never reach the name.
func (i ItemURI) FileName() string {
	isSep := func(r rune) bool { return r == '/' || r == '\\' }

	var parts []string
	for _, p := range strings.FieldsFunc(i.Path, isSep) {
		if p == "." || p == ".." {
			continue
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return i.ModeID
	}
	return strings.Join(parts, "-")
}

// Intent is what a process launch asks the application to do.
type Intent struct {
	// ModeID is the game mode explicitly selected, empty if none.
	ModeID string
	// Item is the item to add, nil if the launch only wants the instance in front.
	Item *ItemURI
	// Trace forces the diagnostic trace to be kept.
	Trace bool
	// UninstallID is the game mode whose data must be removed, the launch does nothing else.
	UninstallID string
}

// ResolveModeID returns the mode selected by the intent, the explicit mode wins over
// the item mode.
func (i Intent) ResolveModeID() string {
	if i.ModeID != "" {
		return strings.ToLower(i.ModeID)
	}
	if i.Item != nil {
		return i.Item.ModeID
	}
	return ""
}

// CommandKind is the kind of command forwarded to the live instance.
type CommandKind string

const (
	// CommandAddItem asks the instance to add an item.
	CommandAddItem CommandKind = "add-item"
	// CommandBringToFront asks the instance to restore and activate its main surface.
	CommandBringToFront CommandKind = "bring-to-front"
	// CommandProbe is a liveness no-op.
	CommandProbe CommandKind = "probe"
)

// Command is a command executed by the live instance command sink.
type Command struct {
	Kind CommandKind
	// Item is set for CommandAddItem.
	Item string
}

// AddItemCommand returns an add item command.
func AddItemCommand(item string) Command { return Command{Kind: CommandAddItem, Item: item} }

// BringToFrontCommand returns a bring to front command.
func BringToFrontCommand() Command { return Command{Kind: CommandBringToFront} }

func (c Command) String() string {
	if c.Kind == CommandAddItem {
		return fmt.Sprintf("%s(%s)", c.Kind, c.Item)
	}
	return string(c.Kind)
}
