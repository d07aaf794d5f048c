package core

import "encoding/base64"

// Secret is opaque key material. It only becomes text when marshalled.
type Secret []byte

// MarshalText encodes the secret as standard base64
func (s Secret) MarshalText() ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(s)))
	base64.StdEncoding.Encode(out, s)
	return out, nil
}

// UnmarshalText decodes standard base64
func (s *Secret) UnmarshalText(text []byte) error {
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(decoded, text)
	if err != nil {
		return err
	}
	*s = decoded[:n]
	return nil
}

// String never prints the key material
func (s Secret) String() string {
	return "[secret]"
}
