package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/model"
)

// GetTaxonomy loads a user's categories (with subcategories) and payment
// methods in their stored order. A user without any yields an empty taxonomy.
func (s *SQLiteStorage) GetTaxonomy(ctx context.Context, userID string) (model.Taxonomy, error) {
	if err := validateContext(ctx); err != nil {
		return model.Taxonomy{}, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return model.Taxonomy{}, err
	}

	var tax model.Taxonomy
	index := make(map[string]int)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM categories WHERE user_id = ? ORDER BY position, id
	`, userID)
	if err != nil {
		return model.Taxonomy{}, fmt.Errorf("failed to query categories: %w", err)
	}
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name); err != nil {
			_ = rows.Close()
			return model.Taxonomy{}, fmt.Errorf("failed to scan category: %w", err)
		}
		index[cat.ID] = len(tax.Categories)
		tax.Categories = append(tax.Categories, cat)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return model.Taxonomy{}, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT category_id, id, name, keywords FROM subcategories
		WHERE user_id = ? ORDER BY position, id
	`, userID)
	if err != nil {
		return model.Taxonomy{}, fmt.Errorf("failed to query subcategories: %w", err)
	}
	for rows.Next() {
		var (
			categoryID string
			sub        model.Subcategory
			keywords   string
		)
		if err := rows.Scan(&categoryID, &sub.ID, &sub.Name, &keywords); err != nil {
			_ = rows.Close()
			return model.Taxonomy{}, fmt.Errorf("failed to scan subcategory: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &sub.Keywords); err != nil {
			_ = rows.Close()
			return model.Taxonomy{}, fmt.Errorf("%w: keywords for subcategory %s: %v", common.ErrDatabaseCorrupted, sub.ID, err)
		}
		if i, ok := index[categoryID]; ok {
			tax.Categories[i].Subcategories = append(tax.Categories[i].Subcategories, sub)
		}
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return model.Taxonomy{}, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT id, name FROM payment_methods WHERE user_id = ? ORDER BY position, id
	`, userID)
	if err != nil {
		return model.Taxonomy{}, fmt.Errorf("failed to query payment methods: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var pm model.PaymentMethod
		if err := rows.Scan(&pm.ID, &pm.Name); err != nil {
			return model.Taxonomy{}, fmt.Errorf("failed to scan payment method: %w", err)
		}
		tax.PaymentMethods = append(tax.PaymentMethods, pm)
	}
	return tax, rows.Err()
}

// SaveTaxonomy replaces a user's whole taxonomy. Slice order becomes the
// stored order.
func (s *SQLiteStorage) SaveTaxonomy(ctx context.Context, userID string, tax model.Taxonomy) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM subcategories WHERE user_id = ?`,
			`DELETE FROM categories WHERE user_id = ?`,
			`DELETE FROM payment_methods WHERE user_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, userID); err != nil {
				return fmt.Errorf("failed to clear taxonomy: %w", err)
			}
		}

		for i, cat := range tax.Categories {
			if err := validateString(cat.ID, "category.ID"); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO categories (id, user_id, name, position) VALUES (?, ?, ?, ?)
			`, cat.ID, userID, cat.Name, i); err != nil {
				return taxonomyInsertErr("category", cat.ID, err)
			}

			for j, sub := range cat.Subcategories {
				if err := validateString(sub.ID, "subcategory.ID"); err != nil {
					return err
				}
				keywords := sub.Keywords
				if keywords == nil {
					keywords = []string{}
				}
				encoded, err := json.Marshal(keywords)
				if err != nil {
					return fmt.Errorf("failed to encode keywords: %w", err)
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO subcategories (id, user_id, category_id, name, keywords, position)
					VALUES (?, ?, ?, ?, ?, ?)
				`, sub.ID, userID, cat.ID, sub.Name, string(encoded), j); err != nil {
					return taxonomyInsertErr("subcategory", sub.ID, err)
				}
			}
		}

		for i, pm := range tax.PaymentMethods {
			if err := validateString(pm.ID, "paymentMethod.ID"); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO payment_methods (id, user_id, name, position) VALUES (?, ?, ?, ?)
			`, pm.ID, userID, pm.Name, i); err != nil {
				return taxonomyInsertErr("payment method", pm.ID, err)
			}
		}
		return nil
	})
}

func taxonomyInsertErr(kind, id string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s %s", common.ErrDuplicateEntry, kind, id)
	}
	return fmt.Errorf("failed to save %s %s: %w", kind, id, err)
}
