package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/easeaico/roleplay-relay/internal/types"
)

// fakeValues keys tabs by their bare name and checks that every range it
// receives is a quoted tab reference.
type fakeValues struct {
	tabs     map[string][][]any
	appended map[string][][]any
	missing  map[string]bool
	ranges   []string
	err      error
}

func newFakeValues() *fakeValues {
	return &fakeValues{tabs: map[string][][]any{}, appended: map[string][][]any{}}
}

func unquoteTab(rng string) (string, error) {
	if len(rng) < 2 || rng[0] != '\'' || rng[len(rng)-1] != '\'' {
		return "", fmt.Errorf("range %q is not a quoted tab", rng)
	}
	return strings.ReplaceAll(rng[1:len(rng)-1], "''", "'"), nil
}

func (f *fakeValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	f.ranges = append(f.ranges, rng)
	if f.err != nil {
		return nil, f.err
	}
	tab, err := unquoteTab(rng)
	if err != nil {
		return nil, err
	}
	if f.missing[tab] {
		return nil, fmt.Errorf("%w: %s", errMissingTab, rng)
	}
	return append(f.tabs[tab], f.appended[tab]...), nil
}

func (f *fakeValues) Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	f.ranges = append(f.ranges, rng)
	if f.err != nil {
		return f.err
	}
	tab, err := unquoteTab(rng)
	if err != nil {
		return err
	}
	f.appended[tab] = append(f.appended[tab], rows...)
	return nil
}

func TestToRecordsHandlesShortRows(t *testing.T) {
	records := toRecords([][]string{
		{"Nome", "Usar", "Idade"},
		{"Ana", "sim"},
	})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0]["nome"] != "Ana" || records[0]["idade"] != "" {
		t.Fatalf("unexpected record: %v", records[0])
	}
}

func TestCharacterRepoAll(t *testing.T) {
	api := newFakeValues()
	api.tabs[tabCharacters] = [][]any{
		{"nome", "usar", "idade", "descrição curta"},
		{"Jennifer", "sim", 25, "Curiosa"},
		{"Ana", "não", 30, ""},
		{"", "sim", 1, "linha vazia"},
	}
	repo := NewCharacterRepo(newClient(api, "sheet"))

	got, err := repo.All(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 characters, got %d", len(got))
	}
	if !got[0].Enabled || got[0].Attr(types.AttrAge) != "25" || got[0].Attr(types.AttrShortDescription) != "Curiosa" {
		t.Fatalf("unexpected first character: %+v", got[0])
	}
	if got[1].Enabled {
		t.Fatalf("expected Ana disabled")
	}
	if _, ok := got[1].Attributes[types.AttrShortDescription]; ok {
		t.Fatalf("empty attributes must be dropped")
	}
}

func TestMemoryRepoFiltersByCharacter(t *testing.T) {
	api := newFakeValues()
	api.tabs[tabMemories] = [][]any{
		{"personagem", "tipo", "emoção", "título", "data", "relevância", "conteudo"},
		{"Ana", "fato", "calma", "Café", "01/01/2024", "alta", "Gosta de café"},
		{"Jennifer", "fato", "", "", "", "", "Outra"},
	}
	repo := NewMemoryRepo(newClient(api, "sheet"))

	got, err := repo.ListByCharacter(context.Background(), " ana")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 1 || got[0].Title != "Café" || got[0].Content != "Gosta de café" {
		t.Fatalf("unexpected memories: %+v", got)
	}
}

func TestConversationLogRoundTrip(t *testing.T) {
	api := newFakeValues()
	api.tabs["Ana"] = [][]any{{"timestamp", "role", "content"}}
	log := NewConversationLog(newClient(api, "sheet"))
	ctx := context.Background()

	for i, text := range []string{"um", "dois", "três"} {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		if err := log.Append(ctx, types.LogEntry{Character: "Ana", Role: role, Content: text}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recent, err := log.Recent(ctx, "Ana", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "dois" || recent[1].Content != "três" {
		t.Fatalf("unexpected recent entries: %+v", recent)
	}

	users, err := log.Count(ctx, "Ana", types.RoleUser)
	if err != nil || users != 2 {
		t.Fatalf("expected 2 user turns, got %d, %v", users, err)
	}
}

func TestConversationLogAppendRequiresCharacter(t *testing.T) {
	log := NewConversationLog(newClient(newFakeValues(), "sheet"))
	err := log.Append(context.Background(), types.LogEntry{Role: types.RoleUser, Content: "x"})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSynopsisLatest(t *testing.T) {
	api := newFakeValues()
	api.tabs["Ana_sinopse"] = [][]any{
		{"timestamp", "sinopse", "palavras"},
		{"2024-01-01 10:00:00", "Primeira", 1},
		{"2024-01-02 10:00:00", "Segunda parte", 2},
	}
	repo := NewSynopsisRepo(newClient(api, "sheet"))

	got, err := repo.Latest(context.Background(), "Ana")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got == nil || got.Text != "Segunda parte" || got.WordCount != 2 {
		t.Fatalf("unexpected synopsis: %+v", got)
	}
}

func TestSynopsisLatestEmptyTab(t *testing.T) {
	api := newFakeValues()
	api.tabs["Ana_sinopse"] = [][]any{{"timestamp", "sinopse", "palavras"}}
	got, err := NewSynopsisRepo(newClient(api, "sheet")).Latest(context.Background(), "Ana")
	if err != nil || got != nil {
		t.Fatalf("expected no synopsis, got %+v, %v", got, err)
	}
}

func TestNormalizeCredentialsUnescapesKey(t *testing.T) {
	out, err := normalizeCredentials(`{"type":"service_account","private_key":"-----BEGIN\\nKEY\\n-----END"}`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Contains(string(out), `\\n`) {
		t.Fatalf("expected escaped newlines to be converted: %s", out)
	}
}

func TestReadErrorIsWrapped(t *testing.T) {
	api := newFakeValues()
	api.err = errors.New("403 forbidden")
	_, err := NewCharacterRepo(newClient(api, "sheet")).All(context.Background())
	if err == nil || !strings.Contains(err.Error(), "personagens") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestTabRangeQuotesNames(t *testing.T) {
	cases := map[string]string{
		"Ana":         "'Ana'",
		"AB12":        "'AB12'",
		"O'Neil!":     "'O''Neil!'",
		"Ana_sinopse": "'Ana_sinopse'",
		"Maria Clara": "'Maria Clara'",
	}
	for name, want := range cases {
		if got := tabRange(name); got != want {
			t.Errorf("tabRange(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestConversationLogOddTabNames(t *testing.T) {
	api := newFakeValues()
	log := NewConversationLog(newClient(api, "sheet"))
	ctx := context.Background()

	for _, name := range []string{"O'Neil!", "AB12"} {
		if err := log.Append(ctx, types.LogEntry{Character: name, Role: types.RoleUser, Content: "oi"}); err != nil {
			t.Fatalf("append %q: %v", name, err)
		}
		recent, err := log.Recent(ctx, name, 5)
		if err != nil {
			t.Fatalf("recent %q: %v", name, err)
		}
		if len(recent) != 1 || recent[0].Content != "oi" {
			t.Fatalf("unexpected entries for %q: %+v", name, recent)
		}
	}
	if api.ranges[0] != "'O''Neil!'" || api.ranges[2] != "'AB12'" {
		t.Fatalf("unexpected ranges: %v", api.ranges)
	}
}

func TestSynopsisLatestMissingTab(t *testing.T) {
	api := newFakeValues()
	api.missing = map[string]bool{"Ana_sinopse": true}
	got, err := NewSynopsisRepo(newClient(api, "sheet")).Latest(context.Background(), "Ana")
	if err != nil || got != nil {
		t.Fatalf("expected no synopsis, got %+v, %v", got, err)
	}
}

func TestSynopsisLatestOtherErrorsSurface(t *testing.T) {
	api := newFakeValues()
	api.err = errors.New("503 backend error")
	if _, err := NewSynopsisRepo(newClient(api, "sheet")).Latest(context.Background(), "Ana"); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestIsMissingTab(t *testing.T) {
	missing := &googleapi.Error{Code: http.StatusBadRequest, Message: "Unable to parse range: 'Ana_sinopse'"}
	if !isMissingTab(fmt.Errorf("get: %w", missing)) {
		t.Fatalf("expected missing tab to be recognized")
	}
	if isMissingTab(&googleapi.Error{Code: http.StatusForbidden, Message: "The caller does not have permission"}) {
		t.Fatalf("permission errors are not missing tabs")
	}
	if isMissingTab(errors.New("Unable to parse range")) {
		t.Fatalf("only API errors are classified")
	}
}
