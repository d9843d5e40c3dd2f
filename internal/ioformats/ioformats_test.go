package ioformats

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadCSV(t *testing.T) {
	path := write(t, "urls.csv", "id,URL\n1,http://a.com/x\n2, \n3,http://b.com/\n")
	got, err := ReadURLs(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"http://a.com/x", "http://b.com/"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestReadCSVWithoutHeader(t *testing.T) {
	path := write(t, "urls.csv", "link\nhttp://a.com\n")
	if _, err := ReadURLs(path); err == nil {
		t.Fatal("expected missing header error")
	}
}

func TestReadNDJSONAndLines(t *testing.T) {
	path := write(t, "urls.ndjson", "{\"url\":\"http://a.com\"}\n\n# comment\nhttp://b.com/page\n")
	got, err := ReadURLs(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"http://a.com", "http://b.com/page"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	plain := write(t, "urls", "http://c.com\nhttp://d.com\n")
	got, err = ReadURLs(plain)
	if err != nil || len(got) != 2 {
		t.Fatalf("plain list: %v %v", got, err)
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "name")
	_ = f.SetCellValue("Sheet1", "B1", "url")
	_ = f.SetCellValue("Sheet1", "A2", "home")
	_ = f.SetCellValue("Sheet1", "B2", "http://example.com/")
	_ = f.SetCellValue("Sheet1", "B3", "http://example.com/missing.html")
	path := filepath.Join(t.TempDir(), "urls.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	got, err := ReadURLs(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"http://example.com/", "http://example.com/missing.html"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestWriteNDJSON(t *testing.T) {
	type rec struct {
		URL string `json:"url"`
	}
	var buf bytes.Buffer
	if err := WriteNDJSON(&buf, []rec{{"a"}, {"b"}}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\"url\":\"a\"}\n{\"url\":\"b\"}\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
