package auth

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// ParseAuthorization splits an Authorization header value into a
// lower-cased scheme token and its payload. A missing header yields an
// empty scheme and no error; anything other than exactly two
// whitespace-separated tokens yields ErrMalformedCredential (the scheme
// is still returned so the caller can shape the challenge).
//
// HTTP headers are not guaranteed UTF-8; the value is treated as
// ISO-8859-1 bytes throughout.
func ParseAuthorization(header string) (scheme, payload string, err error) {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return "", "", nil
	}

	scheme = strings.ToLower(fields[0])
	if len(fields) != 2 {
		return scheme, "", ErrMalformedCredential
	}
	return scheme, fields[1], nil
}

// DecodeBasic decodes a Basic credential payload: base64 of
// "username:password". The decoded bytes are interpreted as ISO-8859-1
// and split on the first colon; a payload without a colon yields the
// whole text as the username and an empty password.
func DecodeBasic(payload string) (username, plaintext string, err error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", "", ErrMalformedCredential
	}

	decoded := latin1String(raw)
	username, plaintext, _ = strings.Cut(decoded, ":")
	return username, plaintext, nil
}

// DecodeToken decodes a token credential payload as text. The key must
// be valid UTF-8; anything else signals a malformed credential.
func DecodeToken(payload string) (string, error) {
	if !utf8.ValidString(payload) {
		return "", ErrMalformedCredential
	}
	return payload, nil
}

// latin1String maps each byte to the equivalent Unicode code point.
// Unlike a UTF-8 conversion this never fails, matching the ISO-8859-1
// header contract.
func latin1String(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
