package handlers

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"
)

// EmailHandler renders RFC 5322 messages as header lines plus decoded body
// parts. HTML-only bodies are tag-stripped.
type EmailHandler struct{}

var _ Handler = (*EmailHandler)(nil)

func (h *EmailHandler) Name() string { return "email" }

var headerOrder = []string{"From", "To", "Cc", "Date", "Subject"}

func (h *EmailHandler) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("reading %s; %w", path, err)
	}
	defer f.Close()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		return "", fmt.Errorf("parsing %s; %w", path, err)
	}

	var b strings.Builder
	decoder := new(mime.WordDecoder)
	for _, key := range headerOrder {
		value := msg.Header.Get(key)
		if value == "" {
			continue
		}
		if decoded, err := decoder.DecodeHeader(value); err == nil {
			value = decoded
		}
		fmt.Fprintf(&b, "%s: %s\n", key, value)
	}
	b.WriteString("\n")

	body, err := readBody(msg.Header.Get("Content-Type"),
		msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return "", fmt.Errorf("decoding body of %s; %w", path, err)
	}
	b.WriteString(body)

	return strings.TrimSpace(b.String()), nil
}

func readBody(contentType, transferEncoding string, r io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return "", fmt.Errorf("multipart message without boundary")
		}
		mr := multipart.NewReader(r, boundary)

		var parts []string
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				break
			}
			text, err := readBody(part.Header.Get("Content-Type"),
				part.Header.Get("Content-Transfer-Encoding"), part)
			if err == nil && strings.TrimSpace(text) != "" {
				parts = append(parts, strings.TrimSpace(text))
			}
		}
		return strings.Join(parts, "\n\n"), nil
	}

	if !strings.HasPrefix(mediaType, "text/") {
		// Attachments are not inlined.
		return "", nil
	}

	if strings.EqualFold(transferEncoding, "quoted-printable") {
		r = quotedprintable.NewReader(r)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	text := DecodeText(data)
	if mediaType == "text/html" {
		text = tagRe.ReplaceAllString(blockTagRe.ReplaceAllString(text, "\n"), " ")
		text = htmlEntities.Replace(text)
	}
	return text, nil
}
