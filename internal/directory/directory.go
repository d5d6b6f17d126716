// Package directory reads the user metadata document: a server descriptor
// and an ordered list of users, from which avatar URLs are derived.
package directory

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"presence/internal/presence"
)

// ErrMalformedDocument is returned when the source is not well-formed XML.
var ErrMalformedDocument = errors.New("malformed directory document")

// Default server descriptor values.
const (
	DefaultProtocol = "https"
	DefaultHost     = "localhost"
)

const avatarPath = "/api/images/users/"

// Server describes where avatar images are served from.
type Server struct {
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

// BaseURL returns protocol://host:port.
func (s Server) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", s.Protocol, s.Host, s.Port)
}

// AvatarURL returns the image address for a user id.
func (s Server) AvatarURL(id int) string {
	return s.BaseURL() + avatarPath + strconv.Itoa(id)
}

// Entry is one user of the directory.
type Entry struct {
	PersonID  int    `json:"user_id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar"`
}

// Directory is a parsed metadata document.
type Directory struct {
	Server  Server
	Entries []Entry
}

type xmlServer struct {
	ProtocolAttr string `xml:"protocol,attr"`
	HostAttr     string `xml:"host,attr"`
	PortAttr     string `xml:"port,attr"`
	Protocol     string `xml:"protocol"`
	Host         string `xml:"host"`
	Port         string `xml:"port"`
}

type xmlUser struct {
	IDAttr   string `xml:"id,attr"`
	NameAttr string `xml:"name,attr"`
	ID       string `xml:"id"`
	Name     string `xml:"name"`
}

// first returns the first non-blank value, trimmed.
func first(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (x xmlServer) descriptor() Server {
	s := Server{
		Protocol: strings.ToLower(first(x.Protocol, x.ProtocolAttr, DefaultProtocol)),
		Host:     first(x.Host, x.HostAttr, DefaultHost),
	}
	if p, err := strconv.Atoi(first(x.Port, x.PortAttr)); err == nil && p > 0 {
		s.Port = p
	} else {
		s.Port = defaultPort(s.Protocol)
	}
	return s
}

func defaultPort(protocol string) int {
	if protocol == "https" {
		return 443
	}
	return 80
}

type pendingUser struct {
	line int
	x    xmlUser
}

// Parse reads the document. The first <server> element anywhere in the tree
// is the descriptor; every <user> element becomes an entry in document order.
// Users without a numeric id or a name, and repeats of an earlier id, are
// reported and skipped.
func Parse(r io.Reader) (Directory, presence.ParseReport, error) {
	dec := xml.NewDecoder(r)
	var (
		report  presence.ParseReport
		server  *xmlServer
		pending []pendingUser
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Directory{}, report, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "server":
			var x xmlServer
			if err := dec.DecodeElement(&x, &se); err != nil {
				return Directory{}, report, fmt.Errorf("%w: server: %w", ErrMalformedDocument, err)
			}
			if server == nil {
				server = &x
			}
		case "user":
			line, _ := dec.InputPos()
			var x xmlUser
			if err := dec.DecodeElement(&x, &se); err != nil {
				return Directory{}, report, fmt.Errorf("%w: user: %w", ErrMalformedDocument, err)
			}
			pending = append(pending, pendingUser{line: line, x: x})
		}
	}

	dir := Directory{Entries: []Entry{}}
	if server != nil {
		dir.Server = server.descriptor()
	} else {
		dir.Server = xmlServer{}.descriptor()
	}

	seen := make(map[int]bool, len(pending))
	for _, p := range pending {
		rawID := first(p.x.IDAttr, p.x.ID)
		name := first(p.x.Name, p.x.NameAttr)
		if rawID == "" {
			report.Skipf(p.line, "user without id")
			continue
		}
		id, err := strconv.Atoi(rawID)
		if err != nil {
			report.Skipf(p.line, "user id %q: not a number", rawID)
			continue
		}
		if name == "" {
			report.Skipf(p.line, "user %d without name", id)
			continue
		}
		if seen[id] {
			report.Skipf(p.line, "user %d listed twice", id)
			continue
		}
		seen[id] = true
		dir.Entries = append(dir.Entries, Entry{PersonID: id, Name: name, AvatarURL: dir.Server.AvatarURL(id)})
		report.Accepted++
	}
	return dir, report, nil
}
