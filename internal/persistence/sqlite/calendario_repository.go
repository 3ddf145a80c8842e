package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/calendario-escolar/internal/domain"
	"github.com/example/calendario-escolar/internal/persistence"
)

// CalendarioRepository implements persistence.CalendarioRepository using SQLite.
type CalendarioRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewCalendarioRepository creates a new SQLite calendar repository.
func NewCalendarioRepository(pool *ConnectionPool) *CalendarioRepository {
	return &CalendarioRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const calendarioSelect = `
	SELECT c.id, c.professor_id, u.nome, u.email, c.turma, c.disciplina, c.bimestre, c.ano,
		c.av1_data, c.av1_instrumento, c.av1_conteudo, c.av1_criterios,
		c.av2_data, c.av2_instrumento, c.av2_conteudo, c.av2_criterios,
		c.consolidacao_data, c.consolidacao_conteudo, c.consolidacao_criterios,
		c.status, c.necessita_impressao, c.comentario_coordenacao, c.version,
		c.created_at, c.updated_at
	FROM calendarios c
	JOIN users u ON u.id = c.professor_id`

// CreateCalendario inserts a calendar at version 1. necessita_impressao is
// computed from the instruments.
func (r *CalendarioRepository) CreateCalendario(ctx context.Context, c persistence.Calendario) error {
	if c.ID == "" || c.ProfessorID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO calendarios (
			id, professor_id, turma, disciplina, bimestre, ano,
			av1_data, av1_instrumento, av1_conteudo, av1_criterios,
			av2_data, av2_instrumento, av2_conteudo, av2_criterios,
			consolidacao_data, consolidacao_conteudo, consolidacao_criterios,
			status, necessita_impressao, comentario_coordenacao, version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			c.ID, c.ProfessorID, c.Turma, c.Disciplina, c.Bimestre, c.Ano,
			formatDate(c.AV1.Data), c.AV1.Instrumento, c.AV1.Conteudo, c.AV1.Criterios,
			formatDate(c.AV2.Data), c.AV2.Instrumento, c.AV2.Conteudo, c.AV2.Criterios,
			formatDate(c.Consolidacao.Data), c.Consolidacao.Conteudo, c.Consolidacao.Criterios,
			c.Status, necessitaImpressao(c), c.ComentarioCoordenacao,
			formatTimestamp(c.CreatedAt), formatTimestamp(c.UpdatedAt),
		)
		return err
	})
}

// GetCalendario retrieves a calendar with its owner's name and e-mail.
func (r *CalendarioRepository) GetCalendario(ctx context.Context, id string) (persistence.Calendario, error) {
	if id == "" {
		return persistence.Calendario{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, calendarioSelect+` WHERE c.id = ?`, id)
	c, err := scanCalendario(row)
	if err != nil {
		return persistence.Calendario{}, r.mapper.MapError(err)
	}
	return c, nil
}

// UpdateCalendario writes c when the stored version still equals
// expectedVersion, bumping it by one. The owner and creation time never change.
func (r *CalendarioRepository) UpdateCalendario(ctx context.Context, c persistence.Calendario, expectedVersion int) error {
	if c.ID == "" {
		return persistence.ErrNotFound
	}

	query := `
		UPDATE calendarios
		SET turma = ?, disciplina = ?, bimestre = ?, ano = ?,
			av1_data = ?, av1_instrumento = ?, av1_conteudo = ?, av1_criterios = ?,
			av2_data = ?, av2_instrumento = ?, av2_conteudo = ?, av2_criterios = ?,
			consolidacao_data = ?, consolidacao_conteudo = ?, consolidacao_criterios = ?,
			status = ?, necessita_impressao = ?, comentario_coordenacao = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := r.helper.ExecTx(ctx, tx, query,
				c.Turma, c.Disciplina, c.Bimestre, c.Ano,
				formatDate(c.AV1.Data), c.AV1.Instrumento, c.AV1.Conteudo, c.AV1.Criterios,
				formatDate(c.AV2.Data), c.AV2.Instrumento, c.AV2.Conteudo, c.AV2.Criterios,
				formatDate(c.Consolidacao.Data), c.Consolidacao.Conteudo, c.Consolidacao.Criterios,
				c.Status, necessitaImpressao(c), c.ComentarioCoordenacao,
				formatTimestamp(c.UpdatedAt),
				c.ID, expectedVersion,
			)
			if err != nil {
				return err
			}
			return r.checkVersionedWrite(ctx, tx, result, c.ID)
		})
	})
}

// DeleteCalendario removes a calendar when the stored version equals expectedVersion.
func (r *CalendarioRepository) DeleteCalendario(ctx context.Context, id string, expectedVersion int) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := r.helper.ExecTx(ctx, tx, "DELETE FROM calendarios WHERE id = ? AND version = ?", id, expectedVersion)
			if err != nil {
				return err
			}
			return r.checkVersionedWrite(ctx, tx, result, id)
		})
	})
}

// checkVersionedWrite distinguishes a missing row from a stale version when a
// conditional write touched nothing.
func (r *CalendarioRepository) checkVersionedWrite(ctx context.Context, tx *sql.Tx, result sql.Result, id string) error {
	err := requireAffected(result)
	if !isNotFound(err) {
		return err
	}
	var exists int
	if err := r.helper.QueryRowTx(ctx, tx, "SELECT COUNT(*) FROM calendarios WHERE id = ?", id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return persistence.ErrNotFound
	}
	return persistence.ErrStaleVersion
}

// ListCalendarios returns calendars matching filter ordered by year, bimester,
// class, discipline and ID.
func (r *CalendarioRepository) ListCalendarios(ctx context.Context, filter persistence.CalendarioFilter) ([]persistence.Calendario, error) {
	where, args := calendarioWhere(filter)
	query := calendarioSelect + where + `
		ORDER BY c.ano ASC, c.bimestre ASC, c.turma ASC, c.disciplina ASC, c.id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var calendarios []persistence.Calendario
	for rows.Next() {
		c, err := scanCalendario(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		calendarios = append(calendarios, c)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return calendarios, nil
}

// CountCalendarios aggregates calendars matching filter by status and print requirement.
func (r *CalendarioRepository) CountCalendarios(ctx context.Context, filter persistence.CalendarioFilter) (persistence.CalendarioCounts, error) {
	where, args := calendarioWhere(filter)
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN c.status = 'rascunho' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN c.status = 'enviado' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN c.status = 'aprovado' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(c.necessita_impressao), 0)
		FROM calendarios c` + where

	var counts persistence.CalendarioCounts
	err := r.helper.QueryRow(ctx, query, args...).Scan(
		&counts.Total,
		&counts.Rascunho,
		&counts.Enviado,
		&counts.Aprovado,
		&counts.NecessitaImpressao,
	)
	if err != nil {
		return persistence.CalendarioCounts{}, r.mapper.MapError(err)
	}
	return counts, nil
}

func calendarioWhere(filter persistence.CalendarioFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.ProfessorID != "" {
		clauses = append(clauses, "c.professor_id = ?")
		args = append(args, filter.ProfessorID)
	}
	if filter.Turma != "" {
		clauses = append(clauses, "c.turma = ?")
		args = append(args, filter.Turma)
	}
	if filter.Disciplina != "" {
		clauses = append(clauses, "c.disciplina = ?")
		args = append(args, filter.Disciplina)
	}
	if filter.Bimestre != 0 {
		clauses = append(clauses, "c.bimestre = ?")
		args = append(args, filter.Bimestre)
	}
	if filter.Ano != 0 {
		clauses = append(clauses, "c.ano = ?")
		args = append(args, filter.Ano)
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
		clauses = append(clauses, "c.status IN ("+placeholders+")")
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanCalendario(s rowScanner) (persistence.Calendario, error) {
	var (
		c                              persistence.Calendario
		av1Data, av2Data, consolidacao string
		createdAt, updatedAt           string
	)
	err := s.Scan(
		&c.ID, &c.ProfessorID, &c.ProfessorNome, &c.ProfessorEmail,
		&c.Turma, &c.Disciplina, &c.Bimestre, &c.Ano,
		&av1Data, &c.AV1.Instrumento, &c.AV1.Conteudo, &c.AV1.Criterios,
		&av2Data, &c.AV2.Instrumento, &c.AV2.Conteudo, &c.AV2.Criterios,
		&consolidacao, &c.Consolidacao.Conteudo, &c.Consolidacao.Criterios,
		&c.Status, &c.NecessitaImpressao, &c.ComentarioCoordenacao, &c.Version,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return persistence.Calendario{}, err
	}

	if c.AV1.Data, err = parseDate(av1Data); err != nil {
		return persistence.Calendario{}, fmt.Errorf("failed to parse av1_data: %w", err)
	}
	if c.AV2.Data, err = parseDate(av2Data); err != nil {
		return persistence.Calendario{}, fmt.Errorf("failed to parse av2_data: %w", err)
	}
	if c.Consolidacao.Data, err = parseDate(consolidacao); err != nil {
		return persistence.Calendario{}, fmt.Errorf("failed to parse consolidacao_data: %w", err)
	}
	if c.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Calendario{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Calendario{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return c, nil
}

func necessitaImpressao(c persistence.Calendario) bool {
	return domain.NecessitaImpressao(domain.Instrumento(c.AV1.Instrumento), domain.Instrumento(c.AV2.Instrumento))
}
