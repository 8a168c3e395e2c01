package ephem

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// ParseOEM reads a CCSDS OEM XML document (the NASA ISS ephemeris format)
// from r and returns a Snapshot: the raw state-vector records plus the
// header, segment metadata and data-section COMMENT blocks carried
// verbatim. State vectors with missing or non-numeric components are
// skipped with a warning log, matching the load policy for bad epochs.
func ParseOEM(r io.Reader, source string, fetchedAt time.Time, logger *slog.Logger) (Snapshot, error) {
	snap := Snapshot{
		Source:    source,
		FetchedAt: fetchedAt,
	}

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("reading OEM document: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "header":
			doc, _, err := decodeDocument(dec, start)
			if err != nil {
				return Snapshot{}, fmt.Errorf("decoding OEM header: %w", err)
			}
			snap.Header = doc
		case "metadata":
			doc, _, err := decodeDocument(dec, start)
			if err != nil {
				return Snapshot{}, fmt.Errorf("decoding OEM metadata: %w", err)
			}
			snap.Metadata = doc
		case "data":
			if err := decodeData(dec, start, &snap, logger); err != nil {
				return Snapshot{}, err
			}
		}
	}

	if len(snap.Records) == 0 {
		return Snapshot{}, ErrEmptyDataset
	}
	return snap, nil
}

// oemValue is a numeric OEM element, e.g. <X units="km">-4945.2</X>.
type oemValue struct {
	Units string `xml:"units,attr"`
	Text  string `xml:",chardata"`
}

// oemStateVector mirrors one <stateVector> element.
type oemStateVector struct {
	Epoch string   `xml:"EPOCH"`
	X     oemValue `xml:"X"`
	Y     oemValue `xml:"Y"`
	Z     oemValue `xml:"Z"`
	XDot  oemValue `xml:"X_DOT"`
	YDot  oemValue `xml:"Y_DOT"`
	ZDot  oemValue `xml:"Z_DOT"`
}

// decodeData walks the <data> section, collecting COMMENT lines and
// stateVector records.
func decodeData(dec *xml.Decoder, start xml.StartElement, snap *Snapshot, logger *slog.Logger) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decoding OEM data section: %w", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		case xml.StartElement:
			switch t.Name.Local {
			case "COMMENT":
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return fmt.Errorf("decoding OEM comment: %w", err)
				}
				snap.Comment = append(snap.Comment, strings.TrimSpace(text))
			case "stateVector":
				var sv oemStateVector
				if err := dec.DecodeElement(&sv, &t); err != nil {
					return fmt.Errorf("decoding OEM state vector: %w", err)
				}
				rec, err := sv.toRawRecord()
				if err != nil {
					logger.Warn("skipping malformed OEM state vector", "epoch", sv.Epoch, "error", err)
					continue
				}
				snap.Records = append(snap.Records, rec)
			default:
				if err := dec.Skip(); err != nil {
					return fmt.Errorf("decoding OEM data section: %w", err)
				}
			}
		}
	}
}

func (sv oemStateVector) toRawRecord() (RawRecord, error) {
	rec := RawRecord{Epoch: strings.TrimSpace(sv.Epoch)}
	if rec.Epoch == "" {
		return RawRecord{}, fmt.Errorf("missing EPOCH")
	}
	for _, c := range []struct {
		name string
		val  oemValue
		dst  *float64
	}{
		{"X", sv.X, &rec.X},
		{"Y", sv.Y, &rec.Y},
		{"Z", sv.Z, &rec.Z},
		{"X_DOT", sv.XDot, &rec.XDot},
		{"Y_DOT", sv.YDot, &rec.YDot},
		{"Z_DOT", sv.ZDot, &rec.ZDot},
	} {
		f, err := strconv.ParseFloat(strings.TrimSpace(c.val.Text), 64)
		if err != nil {
			return RawRecord{}, fmt.Errorf("invalid %s value %q", c.name, c.val.Text)
		}
		*c.dst = f
	}
	return rec, nil
}

// decodeDocument reads the children of start into an order-preserving
// Document, also returning the element's own trimmed character data.
// Leaf elements become string fields; elements with element children
// become nested Documents. Repeated keys (OEM COMMENT lines in the
// header) are kept as separate fields in document order.
func decodeDocument(dec *xml.Decoder, start xml.StartElement) (Document, string, error) {
	var (
		doc  Document
		text strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, "", err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name == start.Name {
				return doc, strings.TrimSpace(text.String()), nil
			}
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			child, chardata, err := decodeDocument(dec, t)
			if err != nil {
				return nil, "", err
			}
			var val any = chardata
			if len(child) > 0 {
				val = child
			}
			doc = append(doc, Field{Key: t.Name.Local, Value: val})
		}
	}
}
