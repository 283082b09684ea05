package main

import (
	"testing"

	"boxscan/internal/label"
	"boxscan/internal/workflow"
)

func TestFieldValueCoversEveryFormField(t *testing.T) {
	p := label.NewForm("BX-1").Params()
	p.Weight = 2.5
	want := map[string]string{
		"weight":       "2.5",
		"waybillCount": "1",
		"length":       "80",
		"width":        "50",
		"height":       "70",
	}
	for _, name := range label.Fields() {
		if got := fieldValue(p, name); got != want[name] {
			t.Fatalf("%s: got %q want %q", name, got, want[name])
		}
		if fieldTitle(name) == name {
			t.Fatalf("%s has no title", name)
		}
	}
}

func TestElideMiddle(t *testing.T) {
	if got := elideMiddle("192.168.68.0:9100", 40); got != "192.168.68.0:9100" {
		t.Fatalf("short text changed: %q", got)
	}
	if got := elideMiddle("abcdefghijklmnopqrstuvwxyz", 11); got != "abcd...wxyz" {
		t.Fatalf("elide mismatch: %q", got)
	}
}

func TestViewSizeBounds(t *testing.T) {
	w, h := viewSize(0, 0)
	if w != 96 || h != 30 {
		t.Fatalf("default size mismatch: %d x %d", w, h)
	}
	if w, _ := viewSize(300, 50); w != 118 {
		t.Fatalf("width not capped: %d", w)
	}
	left, right := splitWidths(96)
	if left+right+1 != 96 {
		t.Fatalf("split mismatch: %d + %d", left, right)
	}
}

func TestBadgeKind(t *testing.T) {
	if badgeKind(workflow.LevelInfo) != "OK" || badgeKind(workflow.LevelWarn) != "WARN" || badgeKind(workflow.LevelError) != "ERROR" {
		t.Fatalf("badge mapping mismatch")
	}
}
