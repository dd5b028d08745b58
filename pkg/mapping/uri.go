package mapping

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// invertSuffix is the polarity flag appended to a config line. It is not
// part of the URI and must be stripped before parsing.
const invertSuffix = ":invers=true"

// defaultMMSPort is the IEC 61850 MMS port used when the URI omits one.
const defaultMMSPort = "102"

// PointURI is one parsed mapping line: the data or command object address
// of a point on a specific IED.
type PointURI struct {
	// Raw is the URI as handed to the native client (invert suffix stripped).
	Raw string

	// IED is the owning device identity, formatted "host:port".
	IED string

	// IEDName is the first path segment (the IED's logical device prefix).
	IEDName string

	// MMSPath is the URI path without the leading slash.
	MMSPath string

	// Invert is set when the line carried the ":invers=true" suffix.
	Invert bool
}

// ParseConfigLine parses a mapping line of the form
//
//	iec61850://host[:port]/IED_NAME/LD/LN.DO[.DA][":invers=true"]
//
// The port defaults to 102 when absent.
func ParseConfigLine(line string) (PointURI, error) {
	raw := strings.TrimSpace(line)

	invert := false
	if rest, ok := strings.CutSuffix(raw, invertSuffix); ok {
		raw = rest
		invert = true
	}

	u, err := url.Parse(raw)
	if err != nil {
		return PointURI{}, fmt.Errorf("invalid uri %q: %w", raw, err)
	}

	host := u.Hostname()
	if host == "" {
		return PointURI{}, fmt.Errorf("uri %q has no host", raw)
	}

	port := u.Port()
	if port == "" {
		port = defaultMMSPort
	}

	mmsPath := strings.TrimPrefix(u.Path, "/")
	if mmsPath == "" {
		return PointURI{}, fmt.Errorf("uri %q has no path", raw)
	}

	name := mmsPath
	if i := strings.IndexByte(mmsPath, '/'); i >= 0 {
		name = mmsPath[:i]
	}

	return PointURI{
		Raw:     raw,
		IED:     net.JoinHostPort(host, port),
		IEDName: name,
		MMSPath: mmsPath,
		Invert:  invert,
	}, nil
}
