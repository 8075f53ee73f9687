// Package mailroom processes inbound email objects: uploaded documents are
// filed into storage and command emails are answered with statistics or file
// status. Replies go through a Responder so the delivery mechanism stays
// swappable.
package mailroom

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// Attachment is one file carried by an inbound message, with its transfer
// encoding already decoded.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is the parsed form of an inbound email object.
type Message struct {
	Sender      string
	Subject     string
	MessageID   string
	Body        string
	Attachments []Attachment
}

// ParseMessage parses a raw RFC 5322 message. The body is the first
// text/plain part (or the whole body of a non-multipart message); parts with
// an attachment disposition and a filename become Attachments. A message
// that cannot be parsed is rejected whole.
func ParseMessage(raw []byte) (*Message, error) {
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	msg := &Message{
		Sender:    m.Header.Get("From"),
		Subject:   decodeHeader(m.Header.Get("Subject")),
		MessageID: m.Header.Get("Message-ID"),
	}

	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil {
		// No or malformed Content-Type: treat the body as plain text.
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("parse message: multipart content without boundary")
		}
		if err := msg.readParts(multipart.NewReader(m.Body, boundary)); err != nil {
			return nil, err
		}
	} else {
		body, err := decodeBody(m.Body, m.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		msg.Body = string(body)
	}

	msg.Body = strings.TrimSpace(msg.Body)
	return msg, nil
}

// readParts walks a multipart body, recursing into nested multiparts the way
// mixed+alternative messages nest them.
func (msg *Message) readParts(mr *multipart.Reader) error {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read message part: %w", err)
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "text/plain"
		}

		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			if boundary := params["boundary"]; boundary != "" {
				if err := msg.readParts(multipart.NewReader(part, boundary)); err != nil {
					return err
				}
			}

		case isAttachment(part):
			filename := part.FileName()
			if filename == "" {
				continue
			}
			data, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
			if err != nil {
				return fmt.Errorf("decode attachment %s: %w", filename, err)
			}
			msg.Attachments = append(msg.Attachments, Attachment{
				Filename:    filename,
				ContentType: mediaType,
				Data:        data,
			})

		case mediaType == "text/plain" && msg.Body == "":
			data, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
			if err != nil {
				return fmt.Errorf("decode body part: %w", err)
			}
			msg.Body = string(data)
		}
	}
}

func isAttachment(part *multipart.Part) bool {
	disposition, _, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	return err == nil && disposition == "attachment"
}

// decodeBody reads r applying the content transfer encoding. multipart.Part
// already decodes quoted-printable transparently; the explicit case covers
// non-multipart bodies, where net/mail leaves the encoding alone.
func decodeBody(r io.Reader, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}
	return io.ReadAll(r)
}

func decodeHeader(value string) string {
	decoded, err := (&mime.WordDecoder{}).DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
