//go:build go1.18

package state

import "testing"

// Parse accepts only canonical strings: whatever it accepts is exactly the
// key's String and parses back to an equal key.
func FuzzParse(f *testing.F) {
	f.Add("3x3:0,0,0,0,0,0,0,0,0")
	f.Add("1x1:-128")
	f.Add("2x2:1,-1,1,-1")
	f.Add("1x3:+1,01,-0")
	f.Add("")
	f.Add("3x3:")

	f.Fuzz(func(t *testing.T, s string) {
		const limit = 1 << 12
		if len(s) > limit {
			s = s[:limit]
		}
		k, err := Parse(s)
		if err != nil {
			return
		}
		if k.String() != s {
			t.Fatalf("Parse(%q) accepted a non-canonical form of %q", s, k.String())
		}
		again, err := Parse(k.String())
		if err != nil {
			t.Fatalf("canonical form %q does not parse: %v", k.String(), err)
		}
		if !again.Equal(k) || again.Hash() != k.Hash() {
			t.Fatalf("round trip changed key: %s -> %s", k, again)
		}
	})
}
