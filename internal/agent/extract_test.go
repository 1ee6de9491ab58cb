package agent

import (
	"fmt"
	"reflect"
	"testing"
)

func TestExtractThumbnailsPrefersToolOutputs(t *testing.T) {
	toolOutputs := []string{
		"https://cdn.example/a.png\nhttps://cdn.example/b.png",
	}
	finalText := "Here you go: https://other.example/c.png"

	got := ExtractThumbnails(toolOutputs, finalText)
	want := []string{"https://cdn.example/a.png", "https://cdn.example/b.png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExtractThumbnailsTrimsPunctuation(t *testing.T) {
	got := ExtractThumbnails([]string{"  https://cdn.example/a.png.,;  "}, "")
	if len(got) != 1 || got[0] != "https://cdn.example/a.png" {
		t.Fatalf("got %v", got)
	}
}

func TestExtractThumbnailsIgnoresNonURLLines(t *testing.T) {
	toolOutputs := []string{"Error: something broke\nNo result URLs."}
	got := ExtractThumbnails(toolOutputs, "")
	if len(got) != 0 {
		t.Fatalf("got %v, want none", got)
	}
}

func TestExtractThumbnailsFallsBackToFinalText(t *testing.T) {
	finalText := "Results: https://bucket.s3.amazonaws.com/img.png and " +
		"(https://cdn.cloudfront.net/x.webp) but not https://docs.example/readme"

	got := ExtractThumbnails(nil, finalText)
	want := []string{
		"https://bucket.s3.amazonaws.com/img.png",
		"https://cdn.cloudfront.net/x.webp",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExtractThumbnailsDeduplicatesKeepingFirst(t *testing.T) {
	toolOutputs := []string{
		"https://cdn.example/a.png\nhttps://cdn.example/b.png",
		"https://cdn.example/a.png",
	}
	got := ExtractThumbnails(toolOutputs, "")
	want := []string{"https://cdn.example/a.png", "https://cdn.example/b.png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExtractThumbnailsCapsAtEight(t *testing.T) {
	var out string
	for i := 0; i < 12; i++ {
		out += fmt.Sprintf("https://cdn.example/img%d.png\n", i)
	}
	got := ExtractThumbnails([]string{out}, "")
	if len(got) != 8 {
		t.Fatalf("got %d thumbnails, want 8", len(got))
	}
}

func TestExtractThumbnailsEmptyInputs(t *testing.T) {
	got := ExtractThumbnails(nil, "no links here")
	if got == nil {
		t.Fatal("result should be empty, not nil")
	}
	if len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}
