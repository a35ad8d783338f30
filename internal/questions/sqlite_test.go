package questions

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benlos-peru/banquea-bot-whatsapp/internal/domain"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/store"
)

func seedUser(t *testing.T, repo *store.SQLiteRepo) *domain.User {
	t.Helper()
	u := &domain.User{PhoneNumber: "51999999999", State: domain.StateSubscribed}
	require.NoError(t, repo.Upsert(context.Background(), u))
	return u
}

var seedFS = fstest.MapFS{
	"preguntas.csv": &fstest.MapFile{Data: []byte(
		"id,pregunta,area\n" +
			"1,¿Agente más frecuente de NAC?,Infectología\n" +
			"2,¿Dosis de carga de amiodarona?,Cardiología\n" +
			"3,¿Signo de Murphy positivo sugiere?,\n",
	)},
	"respuestas_correctas.csv": &fstest.MapFile{Data: []byte(
		"idpregunta,respuesta\n" +
			"1,S. pneumoniae\n" +
			"2,300 mg IV\n" +
			"3,Colecistitis aguda\n",
	)},
	"respuestas_incorrectas.csv": &fstest.MapFile{Data: []byte(
		"idpregunta,respuesta\n" +
			"1,M. pneumoniae\n" +
			"1,H. influenzae\n" +
			"2,150 mg IV\n" +
			"3,Apendicitis\n",
	)},
}

func seededProvider(t *testing.T) (*SQLiteProvider, *store.SQLiteRepo) {
	t.Helper()
	ctx := context.Background()
	repo, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	n, err := SeedFromCSV(ctx, repo.DB(), seedFS)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	return NewSQLiteProvider(repo.DB()), repo
}

func TestSeedFromCSVIsIdempotent(t *testing.T) {
	_, repo := seededProvider(t)
	n, err := SeedFromCSV(context.Background(), repo.DB(), seedFS)
	require.NoError(t, err)
	assert.Zero(t, n, "a populated bank is not re-imported")
}

func TestGetLoadsOptionsOrderedWithCorrectFirst(t *testing.T) {
	ctx := context.Background()
	p, _ := seededProvider(t)

	q, err := p.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "¿Agente más frecuente de NAC?", q.Text)
	assert.Equal(t, "Infectología", q.Area)
	require.Len(t, q.Options, 3)
	for i, o := range q.Options {
		assert.Equal(t, i+1, o.Position)
	}

	// The correct answer is imported at position 1.
	correct, ok := q.CorrectOption()
	require.True(t, ok)
	assert.Equal(t, 1, correct.Position)
	assert.Equal(t, "S. pneumoniae", correct.Text)
}

func TestGetMissingAreaDefaults(t *testing.T) {
	p, _ := seededProvider(t)
	q, err := p.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "General", q.Area)
}

func TestGetUnknownID(t *testing.T) {
	p, _ := seededProvider(t)
	_, err := p.Get(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNextExcludesLastQuestion(t *testing.T) {
	ctx := context.Background()
	p, _ := seededProvider(t)

	for i := 0; i < 10; i++ {
		q, err := p.Next(ctx, 1, 2)
		require.NoError(t, err)
		assert.NotEqual(t, int64(2), q.ID)
	}
}

func TestNextSkipsAnsweredQuestions(t *testing.T) {
	ctx := context.Background()
	p, repo := seededProvider(t)

	u := seedUser(t, repo)
	for _, qid := range []int64{1, 2} {
		require.NoError(t, repo.RecordAnswer(ctx, store.AnswerRecord{
			UserID: u.ID, QuestionID: qid, Option: 1, Correct: true,
		}))
	}

	q, err := p.Next(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), q.ID, "only the unseen question remains")
}

func TestNextFallsBackWhenBankSeen(t *testing.T) {
	ctx := context.Background()
	p, repo := seededProvider(t)

	u := seedUser(t, repo)
	for _, qid := range []int64{1, 2, 3} {
		require.NoError(t, repo.RecordAnswer(ctx, store.AnswerRecord{
			UserID: u.ID, QuestionID: qid, Option: 1, Correct: true,
		}))
	}

	// The whole bank was seen; repeats are allowed but the pending question
	// is still excluded.
	for i := 0; i < 10; i++ {
		q, err := p.Next(ctx, u.ID, 2)
		require.NoError(t, err)
		assert.NotEqual(t, int64(2), q.ID)
	}
}

func TestShuffledKeepsPositions(t *testing.T) {
	opts := []Option{
		{Position: 1, Text: "a", Correct: true},
		{Position: 2, Text: "b"},
		{Position: 3, Text: "c"},
	}
	out := Shuffled(opts)
	require.Len(t, out, 3)

	seen := make(map[int]string, 3)
	for _, o := range out {
		seen[o.Position] = o.Text
	}
	assert.Equal(t, map[int]string{1: "a", 2: "b", 3: "c"}, seen)
	// Input order untouched.
	assert.Equal(t, 1, opts[0].Position)
}
