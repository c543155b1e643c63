package main

import "testing"

func TestParseList(t *testing.T) {
	got := parseList(" a, ,b ,c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("parseList returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("parseList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if out := parseList(""); len(out) != 0 {
		t.Fatalf("parseList(\"\") = %v, want empty", out)
	}
}

func TestIsTruthy(t *testing.T) {
	for _, s := range []string{"1", "true", "T", " yes ", "on"} {
		if !isTruthy(s) {
			t.Fatalf("isTruthy(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "0", "false", "off", "nope"} {
		if isTruthy(s) {
			t.Fatalf("isTruthy(%q) = true, want false", s)
		}
	}
}
