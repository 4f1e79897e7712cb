package pck

import "testing"

// FuzzDecodeEncode exercises the "decode never panics, and a
// successfully decoded-then-re-encoded packet is stable" half of the
// codec's round-trip and corruption-detection properties. Build-side round-tripping is covered
// by TestDecodeEncodeRoundTrip (table-driven, deterministic).
func FuzzDecodeEncode(f *testing.F) {
	seed, _ := Build(false, KindSYN, []byte("seed.txt"))
	f.Add(seed.Encode())
	f.Add([]byte{})
	f.Add([]byte{0x00, 0x00, 0x00, 0x00})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, buf []byte) {
		decoded, err := Decode(buf)
		if err != nil {
			return
		}
		reEncoded := decoded.Encode()
		redecoded, err := Decode(reEncoded)
		if err != nil {
			t.Fatalf("re-decoding a just-encoded packet failed: %v", err)
		}
		if redecoded.N() != decoded.N() || redecoded.Kind() != decoded.Kind() {
			t.Fatalf("re-decode mismatch: %+v vs %+v", redecoded, decoded)
		}
		if decoded.Corrupt() != redecoded.Corrupt() {
			t.Fatalf("corrupt predicate unstable across re-encode")
		}
	})
}
