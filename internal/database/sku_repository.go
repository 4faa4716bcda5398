package database

import (
	"database/sql"
	"fmt"

	"github.com/parasum-digital/sku-registro/internal/models"
	"github.com/sirupsen/logrus"
)

// SKURepository maneja las operaciones de base de datos sobre maestro_sku
type SKURepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewSKURepository crea una nueva instancia del repositorio
func NewSKURepository(db *DB, logger *logrus.Logger) *SKURepository {
	return &SKURepository{
		db:     db,
		logger: logger,
	}
}

// ExistsBySKUAndNave verifica si ya existe un registro para el par (sku, nave).
// Es el chequeo previo al insert; no hay constraint transaccional detrás,
// así que dos submits simultáneos del mismo par pueden pasar ambos.
func (r *SKURepository) ExistsBySKUAndNave(sku string, nave models.Nave) (bool, error) {
	query := `
		SELECT id
		FROM maestro_sku
		WHERE sku = $1 AND nave = $2
		LIMIT 1
	`

	var id string
	err := r.db.QueryRowWithTimeout(query, sku, nave).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("error checking existing sku: %w", err)
	}

	return true, nil
}

// Insert crea un nuevo registro en maestro_sku
func (r *SKURepository) Insert(record *models.SKURecord) error {
	query := `
		INSERT INTO maestro_sku (
			id, sku, descripcion, nave, largo_cm, ancho_cm, alto_cm,
			peso_kg, max_apilado, se_palletiza, unidades_por_pallet,
			foto_url, fecha_registro
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := r.db.ExecWithTimeout(query,
		record.ID, record.SKU, record.Descripcion, record.Nave,
		record.LargoCm, record.AnchoCm, record.AltoCm, record.PesoKg,
		record.MaxApilado, record.SePalletiza, record.UnidadesPorPallet,
		record.FotoURL, record.FechaRegistro,
	)

	if err != nil {
		return fmt.Errorf("error inserting sku record: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"id":   record.ID,
		"sku":  record.SKU,
		"nave": record.Nave,
	}).Info("SKU record inserted")

	return nil
}

// GetRecent obtiene los últimos registros ordenados por fecha_registro
// descendente, acotados a limit
func (r *SKURepository) GetRecent(limit int) ([]models.SKURecord, error) {
	query := `
		SELECT id, sku, descripcion, nave, largo_cm, ancho_cm, alto_cm,
			   peso_kg, max_apilado, se_palletiza, unidades_por_pallet,
			   foto_url, fecha_registro
		FROM maestro_sku
		ORDER BY fecha_registro DESC
		LIMIT $1
	`

	rows, err := r.db.QueryWithTimeout(query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying recent skus: %w", err)
	}
	defer rows.Close()

	var records []models.SKURecord
	for rows.Next() {
		var record models.SKURecord
		err := rows.Scan(
			&record.ID, &record.SKU, &record.Descripcion, &record.Nave,
			&record.LargoCm, &record.AnchoCm, &record.AltoCm, &record.PesoKg,
			&record.MaxApilado, &record.SePalletiza, &record.UnidadesPorPallet,
			&record.FotoURL, &record.FechaRegistro,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning sku record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sku records: %w", err)
	}

	return records, nil
}
