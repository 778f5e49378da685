package main

import "testing"

func TestParseRoutedKey(t *testing.T) {
	cases := []struct {
		key      string
		wantBase string
		wantName string
	}{
		{"foo.txt", "", "foo.txt"},
		{"foo.txt:/mnt/data", "/mnt/data", "foo.txt"},
		{"a:b:/mnt/data", "b:/mnt/data", "a"},
	}
	for _, c := range cases {
		k := parseRoutedKey(c.key)
		if k.base != c.wantBase || k.name != c.wantName {
			t.Errorf("parseRoutedKey(%q) = %+v, want base=%q name=%q", c.key, k, c.wantBase, c.wantName)
		}
	}
}
