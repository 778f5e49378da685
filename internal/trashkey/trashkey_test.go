package trashkey

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		raw  string
		want Key
	}{
		{"foo", Key{Name: "foo", Home: true}},
		{"foo:/tmp/vol", Key{Name: "foo", Base: "/tmp/vol"}},
		{":/tmp", Key{Name: "", Base: "/tmp"}},
		{"a:b:c", Key{Name: "a", Base: "b:c"}},
	}
	for _, c := range cases {
		got := Parse(c.raw)
		if got != c.want {
			t.Errorf("Parse(%q) = %+v, want %+v", c.raw, got, c.want)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	if Format("a.txt", "") != "a.txt" {
		t.Fatal("home form should stay bare")
	}
	if Format("a.txt", "/mnt/usb") != "a.txt:/mnt/usb" {
		t.Fatal("qualified form must use base after first colon")
	}
	k := Parse(Format("a.txt", "/mnt/usb"))
	if k.Name != "a.txt" || k.Base != "/mnt/usb" || k.Home {
		t.Fatalf("round trip mismatch: %+v", k)
	}
}
