package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/tribunal-tts/internal/audio"
	"github.com/dgnsrekt/tribunal-tts/internal/cache"
	"github.com/dgnsrekt/tribunal-tts/internal/engines"
	"github.com/dgnsrekt/tribunal-tts/internal/speech"
	"github.com/dgnsrekt/tribunal-tts/internal/synth"
	"github.com/dgnsrekt/tribunal-tts/internal/transcript"
	"github.com/dgnsrekt/tribunal-tts/internal/voice"
	"gopkg.in/yaml.v3"
)

const debate = "[Castillo]: Orden en la sala. [Varela] ** [Rossi]: Se admite la prueba."

func mockRows() []parsedRow {
	engine := engines.NewMock()
	assigner := voice.NewPersonaAssigner(engine.Voices())
	return parsedRows(transcript.Parse(debate), assigner)
}

func TestParsedRows(t *testing.T) {
	rows := mockRows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Persona != "castillo" || rows[0].Pitch != 0.6 || rows[0].Voice != "mock-jorge" {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if !rows[1].Silent {
		t.Error("emphasis-only segment should be silent")
	}
	if rows[2].Voice != "mock-helena" {
		t.Errorf("rossi should get the first female voice, got %q", rows[2].Voice)
	}
}

func TestWriteRows(t *testing.T) {
	rows := mockRows()

	var table bytes.Buffer
	if err := writeRows(&table, rows, "table"); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got:\n%s", table.String())
	}
	if !strings.Contains(lines[2], "(silent)") {
		t.Errorf("silent row not marked: %q", lines[2])
	}

	var js bytes.Buffer
	if err := writeRows(&js, rows, "json"); err != nil {
		t.Fatal(err)
	}
	var decoded []parsedRow
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 3 || decoded[2].Speaker != "Rossi" {
		t.Errorf("unexpected json rows %+v", decoded)
	}

	var ym bytes.Buffer
	if err := writeRows(&ym, rows, "yaml"); err != nil {
		t.Fatal(err)
	}
	decoded = nil
	if err := yaml.Unmarshal(ym.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 3 || decoded[0].Persona != "castillo" {
		t.Errorf("unexpected yaml rows %+v", decoded)
	}

	if err := writeRows(&bytes.Buffer{}, rows, "xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestCastRows(t *testing.T) {
	engine := engines.NewMock()
	assigner := voice.NewPersonaAssigner(engine.Voices())
	rows := castRows(transcript.Parse("[Castillo] uno [Rossi] dos [Castillo] tres"), assigner)

	if len(rows) != 2 {
		t.Fatalf("expected 2 speakers, got %+v", rows)
	}
	if rows[0].Speaker != "Castillo" || rows[0].Segments != 2 || rows[0].Persona != "castillo" {
		t.Errorf("unexpected first speaker %+v", rows[0])
	}
	if rows[1].Speaker != "Rossi" || rows[1].Voice != "mock-helena" {
		t.Errorf("unexpected second speaker %+v", rows[1])
	}

	var table bytes.Buffer
	if err := writeCast(&table, rows, "table"); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "Castillo") {
		t.Errorf("unexpected cast table:\n%s", table.String())
	}

	var js bytes.Buffer
	if err := writeCast(&js, rows, "json"); err != nil {
		t.Fatal(err)
	}
	var decoded []castRow
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 2 || decoded[1].Segments != 1 {
		t.Errorf("unexpected json cast %+v", decoded)
	}
}

func TestWriteVoices(t *testing.T) {
	engine := engines.NewMock()
	var out bytes.Buffer
	if err := writeVoices(&out, engine, voice.NewPersonaAssigner(engine.Voices())); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Engine: mock (ready)", "Male voices (1)", "Female voices (2)", "mock-paulina"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in:\n%s", want, out.String())
		}
	}
}

func TestWriteCacheStats(t *testing.T) {
	var out bytes.Buffer
	err := writeCacheStats(&out, "/tmp/tribunal",
		cache.Stats{Size: 2048, Capacity: 64 << 20},
		cache.Stats{Size: 1500000, Capacity: 100 << 20, Items: 1234, Stored: 3000000},
	)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"/tmp/tribunal", "1.5 MB", "1,234 items", "3.0 MB", "2.0 kB"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in:\n%s", want, out.String())
		}
	}
}

func TestRunHeadless(t *testing.T) {
	engine := engines.NewMock()
	player := audio.NewMockPlayer(audio.Format{SampleRate: 22050, Channels: 1})
	player.SetDelayFactor(0.01)
	s := synth.New(engine, player)
	defer s.Close()

	c := speech.NewController(s, voice.NewPersonaAssigner(engine.Voices()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go c.Run(ctx) //nolint:errcheck

	var out bytes.Buffer
	if err := runHeadless(ctx, c, debate, &out); err != nil {
		t.Fatal(err)
	}
	if ctx.Err() != nil {
		t.Fatal("playback did not finish in time")
	}

	want := "Castillo: Orden en la sala.\nRossi: Se admite la prueba.\n"
	if out.String() != want {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if c.State() != speech.StateIdle {
		t.Errorf("expected idle after playback, got %s", c.State())
	}
}

func TestRunHeadless_NothingToSay(t *testing.T) {
	engine := engines.NewMock()
	s := synth.New(engine, audio.NewManualMockPlayer(audio.Format{SampleRate: 22050, Channels: 1}))
	defer s.Close()

	c := speech.NewController(s, voice.NewPersonaAssigner(nil))
	var out bytes.Buffer
	if err := runHeadless(context.Background(), c, "[Castillo] **", &out); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}
