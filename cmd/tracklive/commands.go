package main

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pscheid92/tracklive/internal/domain"
	"github.com/pscheid92/tracklive/internal/navigation"
)

type commandKind int

const (
	cmdSets commandKind = iota
	cmdSelect
	cmdBack
	cmdForward
	cmdState
	cmdHelp
	cmdQuit
)

type command struct {
	kind commandKind
	set  domain.SetID
}

const helpText = `commands:
  sets         list the user's sets
  select N     show set N (0 or "live" for the live set)
  live         show the live set
  back         go back in history
  forward      go forward in history
  state        show selection and feed state
  help         show this help
  quit         exit`

// parseCommand reads one line typed on stdin.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errors.New("empty command")
	}

	switch strings.ToLower(fields[0]) {
	case "sets", "ls":
		return command{kind: cmdSets}, nil
	case "live":
		return command{kind: cmdSelect, set: domain.LiveSet}, nil
	case "select", "s":
		if len(fields) != 2 {
			return command{}, errors.New("usage: select N")
		}
		set, err := parseSetID(fields[1])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdSelect, set: set}, nil
	case "back", "b":
		return command{kind: cmdBack}, nil
	case "forward", "f":
		return command{kind: cmdForward}, nil
	case "state":
		return command{kind: cmdState}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit", "q":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q (try help)", fields[0])
	}
}

func parseSetID(s string) (domain.SetID, error) {
	if s == "live" {
		return domain.LiveSet, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid set id %q", s)
	}
	return domain.SetID(id), nil
}

// parseTarget accepts a bare user id, a page path (/u/dj/123) or a full page
// URL and returns the user and the requested set.
func parseTarget(arg string) (domain.UserID, domain.SetID, error) {
	if !strings.Contains(arg, "/") {
		return navigation.ParsePath("/u/" + arg)
	}

	path := arg
	if u, err := url.Parse(arg); err == nil && u.Host != "" {
		path = u.Path
	}
	return navigation.ParsePath(path)
}
