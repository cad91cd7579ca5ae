package recognize_test

import (
	"testing"

	"torrank/internal/recognize"
	"torrank/internal/rules"
	"torrank/internal/torrent"
)

type expect map[string]bool

func check(t *testing.T, label string, attrs torrent.Attributes, want expect) {
	t.Helper()
	r := &torrent.Resource{Attributes: attrs}
	for token, wantValue := range want {
		_, get, ok := torrent.Lookup(token)
		if !ok {
			t.Fatalf("unknown token %q in test", token)
		}
		value, known := get(r)
		if !known {
			t.Fatalf("%s: %s not recognised", label, token)
		}
		if value != wantValue {
			t.Fatalf("%s: %s = %v, want %v", label, token, value, wantValue)
		}
	}
}

func TestRecognizeTitles(t *testing.T) {
	cases := []struct {
		title, subtitle string
		want            expect
	}{
		{
			title:    "The Wolf Children Ame and Yuki 2012 BluRay 1080p DTS-HDMA5.1 x265.10bit-CHD",
			subtitle: "狼的孩子雨和雪/狼之子雨与雪/Okami kodomo no ame to yuki",
			want:     expect{"BLU": false, "1080P": true, "4K": false, "H265": true, "CN": false, "REMUX": false},
		},
		{
			title: "Movie 2023 2160p UHD Blu-ray HEVC DTS-HD MA 7.1-GRP",
			want:  expect{"BLU": true, "4K": true, "H265": true, "WEB-DL": false},
		},
		{
			title:    "Show S01 2023 2160p WEB-DL H.265 DDP5.1 Atmos DV HDR-FLUX",
			subtitle: "中英双字 国语配音",
			want:     expect{"WEB-DL": true, "4K": true, "H265": true, "DOLBY": true, "HDR": true, "CN": true, "国语配音": true, "BLU": false},
		},
		{
			title: "Film 2019 1080p BluRay REMUX AVC TrueHD 7.1-GRP",
			want:  expect{"BLU": false, "REMUX": true, "H264": true, "1080P": true, "HDR": false},
		},
		{
			title: "Concert 2020 720p HDTV x264 60fps 3D-GRP",
			want:  expect{"720P": true, "H264": true, "60FPS": true, "3D": true, "DOLBY": false},
		},
		{
			title: "Ｍｏｖｉｅ ２１６０ｐ ＷＥＢ－ＤＬ",
			want:  expect{"4K": true, "WEB-DL": true},
		},
	}
	for _, tc := range cases {
		check(t, tc.title, recognize.Recognize(tc.title, tc.subtitle), tc.want)
	}
}

func TestRecognizeBlankLeavesUnknown(t *testing.T) {
	attrs := recognize.Recognize("  ", "")
	if attrs != (torrent.Attributes{}) {
		t.Fatalf("expected all attributes unknown, got %+v", attrs)
	}
}

func TestFillKeepsUpstreamValues(t *testing.T) {
	r := &torrent.Resource{
		Title:          "Movie 2023 2160p WEB-DL",
		DownloadFactor: torrent.Float(0),
		Attributes:     torrent.Attributes{UHD: torrent.Bool(false)},
	}
	recognize.Fill(r)
	if *r.Attributes.UHD {
		t.Fatal("expected upstream UHD=false to be kept")
	}
	if r.Attributes.WebDL == nil || !*r.Attributes.WebDL {
		t.Fatal("expected WEB-DL to be filled")
	}
	if r.Attributes.Free == nil || !*r.Attributes.Free {
		t.Fatal("expected FREE derived from download factor")
	}
}

func TestRecognizedTitleRanksLikeDocs(t *testing.T) {
	rs := rules.MustParse("!BLU & 4K & CN > !BLU & 1080P & CN > !BLU & 4K > !BLU & 1080P")
	r := &torrent.Resource{
		Title:       "The Wolf Children Ame and Yuki 2012 BluRay 1080p DTS-HDMA5.1 x265.10bit-CHD",
		Description: "狼的孩子雨和雪/狼之子雨与雪/Okami kodomo no ame to yuki",
	}
	recognize.Fill(r)
	result, err := rs.Evaluate(r)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Priority() != 97 {
		t.Fatalf("expected priority 97, got %d (rank %d)", result.Priority(), result.Rank)
	}
}

func TestFillAllLeavesInputsUntouched(t *testing.T) {
	input := []*torrent.Resource{{Title: "Movie 2023 2160p WEB-DL"}, nil}
	out := recognize.FillAll(input)
	if len(out) != 1 {
		t.Fatalf("expected nil entries dropped, got %d", len(out))
	}
	if out[0] == input[0] {
		t.Fatal("expected a copy")
	}
	if out[0].Attributes.UHD == nil || !*out[0].Attributes.UHD {
		t.Fatal("expected UHD recognized on the copy")
	}
	if input[0].Attributes != (torrent.Attributes{}) {
		t.Fatalf("input modified: %+v", input[0].Attributes)
	}
}
