package mapping

import (
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/logging"
)

// Build reads the mapping INI file and produces the routing tables. Keys
// are decimal information object addresses, values are point URIs with an
// optional ":invers=true" suffix. Malformed lines are skipped with a
// warning; a missing or unreadable file is fatal.
func Build(path string, log *logging.Logger) (*Tables, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping file %s: %w", path, err)
	}

	t := newTables()
	total := 0

	for _, section := range sectionOrder {
		sec, err := cfg.GetSection(section)
		if err != nil {
			continue
		}
		typ := sectionTypes[section]

		for _, key := range sec.Keys() {
			ioa, ok := parseIOA(key.Name())
			if !ok {
				log.Warn("skipping entry with bad IOA",
					"section", section, "key", key.Name())
				continue
			}

			uri, err := ParseConfigLine(key.Value())
			if err != nil {
				log.Warn("skipping unparseable entry",
					"section", section, "ioa", uint32(ioa), "error", err.Error())
				continue
			}

			if uri.Invert && !typ.IsCommand() &&
				typ != SinglePointInformation && typ != DoublePointInformation {
				// Polarity inversion only applies to point types.
				uri.Invert = false
			}

			// First occurrence of an address fixes its type; the 104
			// registration step rejects and logs the collision.
			if _, seen := t.IOAType[ioa]; !seen {
				t.IOAType[ioa] = typ
			}
			t.Registrations = append(t.Registrations, Registration{IOA: ioa, Type: typ})
			if !containsIOA(t.IEDToIOAs[uri.IED], ioa) {
				t.IEDToIOAs[uri.IED] = append(t.IEDToIOAs[uri.IED], ioa)
			}

			if typ.IsCommand() {
				t.IOAToCommandURI[ioa] = uri
			} else {
				if prev, dup := t.MMSToIOA[uri.MMSPath]; dup {
					log.Warn("duplicate MMS path in mapping, last entry wins",
						"path", uri.MMSPath, "previous_ioa", uint32(prev), "ioa", uint32(ioa))
				}
				t.MMSToIOA[uri.MMSPath] = ioa
				if !containsString(t.IEDDataGroups[uri.IED], uri.Raw) {
					t.IEDDataGroups[uri.IED] = append(t.IEDDataGroups[uri.IED], uri.Raw)
				}
			}

			if uri.Invert {
				t.Inverted[ioa] = true
			}
			total++
		}
	}

	t.freeze()
	log.Info("mapping loaded",
		"points", total, "ieds", len(t.IEDToIOAs), "monitored_ieds", len(t.IEDDataGroups))
	return t, nil
}

// parseIOA parses a decimal address key and enforces the 1..65535 range.
func parseIOA(key string) (IOA, bool) {
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n < 1 || n > MaxIOA {
		return 0, false
	}
	return IOA(n), true
}

func containsIOA(list []IOA, ioa IOA) bool {
	for _, v := range list {
		if v == ioa {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
