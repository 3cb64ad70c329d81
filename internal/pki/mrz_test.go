package pki

import "testing"

func TestParseDG1TD3(t *testing.T) {
	line1 := "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<"
	line2 := "L898902C36UTO7408122F1204159ZE184226B<<<<<10"
	mrz, err := ParseDG1([]byte(line1 + line2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mrz.Format != TD3 {
		t.Fatalf("expected TD3, got %s", mrz.Format)
	}
	if mrz.Surname != "ERIKSSON" {
		t.Fatalf("expected surname ERIKSSON, got %q", mrz.Surname)
	}
	if mrz.DocumentNumber != "L898902C3" {
		t.Fatalf("unexpected document number %q", mrz.DocumentNumber)
	}
}

func TestParseDG1InvalidLength(t *testing.T) {
	if _, err := ParseDG1([]byte("TOO SHORT")); err == nil {
		t.Fatal("expected ParseError for an unrecognised MRZ length")
	}
}

func TestParseDG2JPEG(t *testing.T) {
	body := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 16)...)
	img, err := ParseDG2(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Format != ImageJPEG {
		t.Fatalf("expected JPEG, got %s", img.Format)
	}
}
