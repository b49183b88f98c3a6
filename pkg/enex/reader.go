// Package enex streams notes out of Evernote export files.
package enex

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
)

// TimeLayout is the timestamp format used by ENEX, e.g. 20231201T123000Z.
const TimeLayout = "20060102T150405Z"

type xmlNote struct {
	Title     string        `xml:"title"`
	Content   string        `xml:"content"`
	Created   string        `xml:"created"`
	Updated   string        `xml:"updated"`
	Tags      []string      `xml:"tag"`
	SourceURL string        `xml:"note-attributes>source-url"`
	Resources []xmlResource `xml:"resource"`
}

type xmlResource struct {
	Data struct {
		Encoding string `xml:"encoding,attr"`
		Hash     string `xml:"hash,attr"`
		Value    string `xml:",chardata"`
	} `xml:"data"`
	Mime     string `xml:"mime"`
	FileName string `xml:"resource-attributes>file-name"`
}

// Reader decodes one note at a time; the export is never held in memory as
// a whole.
type Reader struct {
	dec    *xml.Decoder
	name   string
	index  int
	logger *slog.Logger
}

func NewReader(r io.Reader, name string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	dec := xml.NewDecoder(r)
	dec.Entity = xml.HTMLEntity
	return &Reader{dec: dec, name: name, logger: logger}
}

// Next returns the next note, or io.EOF once the export is exhausted.
func (r *Reader) Next() (models.RawNote, error) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return models.RawNote{}, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "note" {
			continue
		}

		var n xmlNote
		if err := r.dec.DecodeElement(&n, &start); err != nil {
			return models.RawNote{}, fmt.Errorf("failed to decode note %d: %w", r.index+1, err)
		}
		r.index++
		return r.convert(n), nil
	}
}

func (r *Reader) convert(n xmlNote) models.RawNote {
	note := models.RawNote{
		ID:        fmt.Sprintf("%s#%d", r.name, r.index),
		Title:     strings.TrimSpace(n.Title),
		Body:      n.Content,
		SourceURL: strings.TrimSpace(n.SourceURL),
		Created:   r.parseTime(n.Created),
		Updated:   r.parseTime(n.Updated),
	}
	for _, tag := range n.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			note.Tags = append(note.Tags, tag)
		}
	}
	for _, res := range n.Resources {
		note.Resources = append(note.Resources, r.resource(note.ID, res))
	}
	return note
}

func (r *Reader) resource(noteID string, res xmlResource) models.Resource {
	out := models.Resource{
		Mime:     strings.TrimSpace(res.Mime),
		FileName: strings.TrimSpace(res.FileName),
		Hash:     strings.TrimSpace(res.Data.Hash),
	}

	raw := strings.Join(strings.Fields(res.Data.Value), "")
	if raw != "" {
		if res.Data.Encoding != "" && res.Data.Encoding != "base64" {
			r.logger.Warn("unsupported resource encoding", "note", noteID, "encoding", res.Data.Encoding)
		} else if data, err := base64.StdEncoding.DecodeString(raw); err != nil {
			r.logger.Warn("invalid resource data", "note", noteID, "file", out.FileName, "error", err)
		} else {
			out.Data = data
		}
	}

	// en-media elements reference resources by the md5 of their bytes.
	if out.Hash == "" && len(out.Data) > 0 {
		sum := md5.Sum(out.Data)
		out.Hash = hex.EncodeToString(sum[:])
	}
	return out
}

func (r *Reader) parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(TimeLayout, value)
	if err != nil {
		r.logger.Debug("unparseable note timestamp", "file", r.name, "value", value)
		return time.Time{}
	}
	return t
}
