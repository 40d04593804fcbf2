package multipart

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
)

var (
	ErrNotMultipart = errors.New("content-type must be multipart/form-data")
	ErrNoBoundary   = errors.New("boundary not found")
)

// FilePart is one decoded file attachment. Filename and ContentType are
// client-declared and must not be trusted as-is.
type FilePart struct {
	Filename    string
	ContentType string
	Data        []byte
	Size        int64
}

// FormData holds the decoded fields and files of a multipart body. When the
// same name appears more than once, the last occurrence wins.
type FormData struct {
	Fields map[string]string
	Files  map[string]*FilePart
}

var (
	boundaryPattern = regexp.MustCompile(`(?i)boundary=(?:"([^"]+)"|([^;]+))`)
	namePattern     = regexp.MustCompile(`(?i)name="([^"]+)"`)
	filenamePattern = regexp.MustCompile(`(?i)filename="([^"]*)"`)
)

var (
	crlf      = []byte("\r\n")
	headerSep = []byte("\r\n\r\n")
	defaultCT = "application/octet-stream"
)

func extractBoundary(contentType string) string {
	match := boundaryPattern.FindStringSubmatch(contentType)
	if match == nil {
		return ""
	}
	if match[1] != "" {
		return match[1]
	}
	return strings.TrimSpace(match[2])
}

// Decode parses a raw multipart/form-data body against the boundary declared
// in contentType. Part bodies are kept as raw bytes end to end; only text
// fields are interpreted as UTF-8. Parts without a Content-Disposition name
// are skipped.
func Decode(body []byte, contentType string) (*FormData, error) {
	if !strings.Contains(contentType, "multipart/form-data") {
		return nil, ErrNotMultipart
	}

	boundary := extractBoundary(contentType)
	if boundary == "" {
		return nil, ErrNoBoundary
	}

	form := &FormData{
		Fields: make(map[string]string),
		Files:  make(map[string]*FilePart),
	}

	segments := bytes.Split(body, []byte("--"+boundary))
	if len(segments) < 3 {
		// Nothing between the preamble and the terminal "--" marker.
		return form, nil
	}

	for _, segment := range segments[1 : len(segments)-1] {
		if len(segment) == 0 {
			continue
		}

		part := bytes.TrimPrefix(segment, crlf)
		part = bytes.TrimSuffix(part, crlf)

		headerEnd := bytes.Index(part, headerSep)
		if headerEnd == -1 {
			continue
		}

		headers := string(part[:headerEnd])
		// The CRLF framing the next boundary was already trimmed at the
		// segment level; trimming again would eat real trailing data bytes.
		data := part[headerEnd+len(headerSep):]

		var disposition, partType string
		for _, line := range strings.Split(headers, "\r\n") {
			lower := strings.ToLower(line)
			switch {
			case strings.HasPrefix(lower, "content-disposition"):
				disposition = line
			case strings.HasPrefix(lower, "content-type"):
				if _, value, found := strings.Cut(line, ":"); found {
					partType = strings.TrimSpace(value)
				}
			}
		}
		if disposition == "" {
			continue
		}

		nameMatch := namePattern.FindStringSubmatch(disposition)
		if nameMatch == nil {
			continue
		}
		fieldName := nameMatch[1]

		if partType == "" {
			partType = defaultCT
		}

		if filenameMatch := filenamePattern.FindStringSubmatch(disposition); filenameMatch != nil {
			form.Files[fieldName] = &FilePart{
				Filename:    filenameMatch[1],
				ContentType: partType,
				Data:        data,
				Size:        int64(len(data)),
			}
		} else {
			form.Fields[fieldName] = string(data)
		}
	}

	return form, nil
}
