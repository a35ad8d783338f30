package questions

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io/fs"
	"strconv"
)

// CSV file names inside the seed filesystem. Formats follow the original
// question bank exports:
//
//	preguntas.csv              id,pregunta,area
//	respuestas_correctas.csv   idpregunta,respuesta
//	respuestas_incorrectas.csv idpregunta,respuesta
const (
	questionsCSV = "preguntas.csv"
	correctCSV   = "respuestas_correctas.csv"
	incorrectCSV = "respuestas_incorrectas.csv"
)

// SeedFromCSV imports the question bank into an empty database. A database
// that already holds questions is left untouched.
func SeedFromCSV(ctx context.Context, db *sql.DB, fsys fs.FS) (int, error) {
	var existing int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&existing); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	prompts, err := readCSV(fsys, questionsCSV)
	if err != nil {
		return 0, err
	}
	correct, err := readAnswers(fsys, correctCSV)
	if err != nil {
		return 0, err
	}
	incorrect, err := readAnswers(fsys, incorrectCSV)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	imported := 0
	for _, rec := range prompts {
		if len(rec) < 2 {
			continue
		}
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: bad question id %q: %w", questionsCSV, rec[0], err)
		}
		area := "General"
		if len(rec) >= 3 && rec[2] != "" {
			area = rec[2]
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO questions (id, text, area) VALUES (?, ?, ?)`,
			id, rec[1], area,
		); err != nil {
			return 0, fmt.Errorf("insert question %d: %w", id, err)
		}

		pos := 0
		for _, text := range correct[id] {
			pos++
			if err := insertOption(ctx, tx, id, pos, text, true); err != nil {
				return 0, err
			}
		}
		for _, text := range incorrect[id] {
			pos++
			if err := insertOption(ctx, tx, id, pos, text, false); err != nil {
				return 0, err
			}
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return imported, nil
}

func insertOption(ctx context.Context, tx *sql.Tx, questionID int64, pos int, text string, correct bool) error {
	c := 0
	if correct {
		c = 1
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO question_options (question_id, position, text, is_correct)
		VALUES (?, ?, ?, ?)`,
		questionID, pos, text, c,
	)
	if err != nil {
		return fmt.Errorf("insert option %d/%d: %w", questionID, pos, err)
	}
	return nil
}

// readCSV reads every data record of a CSV file, skipping the header row.
func readCSV(fsys fs.FS, name string) ([][]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(records) > 0 {
		records = records[1:]
	}
	return records, nil
}

// readAnswers groups answer texts by question id.
func readAnswers(fsys fs.FS, name string) (map[int64][]string, error) {
	records, err := readCSV(fsys, name)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]string)
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad question id %q: %w", name, rec[0], err)
		}
		out[id] = append(out[id], rec[1])
	}
	return out, nil
}
