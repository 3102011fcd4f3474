package transform

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/donmikel/formproxy/applications/server/domain"
)

const (
	// outputFieldName is a client-side control field and is never sent.
	outputFieldName = "output"
	// clickOrEnterFieldName must go out blank or multi-page forms break.
	clickOrEnterFieldName = "clickOrEnter"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Encode turns form fields into multipart parts, keeping input order.
// Fields that cannot be encoded are skipped; the returned error joins the
// reasons and never means the parts are unusable.
func Encode(fields []domain.FormField) ([]domain.MultipartPart, error) {
	parts := make([]domain.MultipartPart, 0, len(fields))
	var errs []error

	for _, field := range fields {
		if field.Name == outputFieldName || field.Value == nil {
			continue
		}

		value := *field.Value
		if field.Name == clickOrEnterFieldName {
			value = ""
		}

		op := fmt.Sprintf("encode field %q", field.Name)

		switch field.Type {
		case domain.FieldTypeText:
			if value == "" {
				continue
			}
			parts = append(parts, textPart(field.Name, value))
		case domain.FieldTypeFile:
			if value == "" {
				continue
			}
			data, err := decodeBase64(value)
			if err != nil {
				errs = append(errs, domain.NewError(domain.InvalidFieldValue, op, err))
				continue
			}
			parts = append(parts, filePart(field, data))
		default:
			errs = append(errs, domain.NewError(domain.UnknownFieldType, op, fmt.Errorf("unknown field type %q", field.Type)))
		}
	}

	return parts, errors.Join(errs...)
}

// WriteMultipart serializes parts into a multipart/form-data body.
func WriteMultipart(parts []domain.MultipartPart) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, part := range parts {
		w, err := writer.CreatePart(part.Header)
		if err != nil {
			return nil, "", fmt.Errorf("create part %q: %w", part.Name(), err)
		}
		if _, err = w.Write(part.Body); err != nil {
			return nil, "", fmt.Errorf("write part %q: %w", part.Name(), err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

func textPart(name, value string) domain.MultipartPart {
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(name)))

	return domain.MultipartPart{Header: header, Body: []byte(value)}
}

func filePart(field domain.FormField, data []byte) domain.MultipartPart {
	filename := field.Filename + "." + field.Extension

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field.Name), quoteEscaper.Replace(filename)))
	header.Set("Content-Type", "image/"+field.Extension)

	return domain.MultipartPart{Header: header, Body: data}
}

// decodeBase64 accepts padded or unpadded, standard or URL-safe input with
// embedded whitespace.
func decodeBase64(value string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, value)
	cleaned = strings.TrimRight(cleaned, "=")

	data, err := base64.RawStdEncoding.DecodeString(cleaned)
	if err == nil {
		return data, nil
	}

	if urlData, urlErr := base64.RawURLEncoding.DecodeString(cleaned); urlErr == nil {
		return urlData, nil
	}

	return nil, fmt.Errorf("decode base64: %w", err)
}
