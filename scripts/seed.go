package main

import (
	"context"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/labtrail/backend/internal/adapters/database"
	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/internal/infrastructure/clients/postgres"
	"github.com/labtrail/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	itemRepo := database.NewCanonicalItemAdapter(pgClient)
	aliasRepo := database.NewAliasAdapter(pgClient)

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				test_result_lines,
				test_records,
				item_aliases,
				canonical_items
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	// 1. Seed canonical vocabulary
	items := []entities.CanonicalItem{
		{ID: uuid.New().String(), Name: "WBC", DisplayName: "White Blood Cells", UnitDefault: "10^3/uL", Category: "hematology", OrganTags: []string{"blood", "immune"}, IsActive: true},
		{ID: uuid.New().String(), Name: "RBC", DisplayName: "Red Blood Cells", UnitDefault: "10^6/uL", Category: "hematology", OrganTags: []string{"blood"}, IsActive: true},
		{ID: uuid.New().String(), Name: "Hemoglobin", DisplayName: "Hemoglobin", UnitDefault: "g/dL", Category: "hematology", OrganTags: []string{"blood"}, IsActive: true},
		{ID: uuid.New().String(), Name: "Hematocrit", DisplayName: "Hematocrit", UnitDefault: "%", Category: "hematology", OrganTags: []string{"blood"}, IsActive: true},
		{ID: uuid.New().String(), Name: "Platelets", DisplayName: "Platelet Count", UnitDefault: "10^3/uL", Category: "hematology", OrganTags: []string{"blood"}, IsActive: true},
		{ID: uuid.New().String(), Name: "BUN", DisplayName: "Blood Urea Nitrogen", UnitDefault: "mg/dL", Category: "kidney", OrganTags: []string{"kidney"}, IsActive: true},
		{ID: uuid.New().String(), Name: "Creatinine", DisplayName: "Creatinine", UnitDefault: "mg/dL", Category: "kidney", OrganTags: []string{"kidney"}, IsActive: true},
		{ID: uuid.New().String(), Name: "Glucose", DisplayName: "Fasting Glucose", UnitDefault: "mg/dL", Category: "metabolic", OrganTags: []string{"pancreas"}, IsActive: true},
		{ID: uuid.New().String(), Name: "HbA1c", DisplayName: "Glycated Hemoglobin", UnitDefault: "%", Category: "metabolic", OrganTags: []string{"pancreas", "blood"}, IsActive: true},
		{ID: uuid.New().String(), Name: "ALT", DisplayName: "Alanine Aminotransferase", UnitDefault: "U/L", Category: "liver", OrganTags: []string{"liver"}, IsActive: true},
		{ID: uuid.New().String(), Name: "AST", DisplayName: "Aspartate Aminotransferase", UnitDefault: "U/L", Category: "liver", OrganTags: []string{"liver"}, IsActive: true},
		{ID: uuid.New().String(), Name: "Total Bilirubin", DisplayName: "Total Bilirubin", UnitDefault: "mg/dL", Category: "liver", OrganTags: []string{"liver"}, IsActive: true},
		{ID: uuid.New().String(), Name: "Albumin", DisplayName: "Albumin", UnitDefault: "g/dL", Category: "liver", OrganTags: []string{"liver"}, IsActive: true},
		{ID: uuid.New().String(), Name: "Total Cholesterol", DisplayName: "Total Cholesterol", UnitDefault: "mg/dL", Category: "lipids", OrganTags: []string{"heart"}, IsActive: true},
		{ID: uuid.New().String(), Name: "Triglycerides", DisplayName: "Triglycerides", UnitDefault: "mg/dL", Category: "lipids", OrganTags: []string{"heart"}, IsActive: true},
		{ID: uuid.New().String(), Name: "HDL", DisplayName: "HDL Cholesterol", UnitDefault: "mg/dL", Category: "lipids", OrganTags: []string{"heart"}, IsActive: true},
		{ID: uuid.New().String(), Name: "LDL", DisplayName: "LDL Cholesterol", UnitDefault: "mg/dL", Category: "lipids", OrganTags: []string{"heart"}, IsActive: true},
		{ID: uuid.New().String(), Name: "Sodium", DisplayName: "Sodium", UnitDefault: "mEq/L", Category: "electrolytes", OrganTags: []string{"kidney"}, IsActive: true},
		{ID: uuid.New().String(), Name: "Potassium", DisplayName: "Potassium", UnitDefault: "mEq/L", Category: "electrolytes", OrganTags: []string{"kidney", "heart"}, IsActive: true},
		{ID: uuid.New().String(), Name: "CRP", DisplayName: "C-Reactive Protein", UnitDefault: "mg/dL", Category: "inflammation", OrganTags: []string{"immune"}, IsActive: true},
	}

	byName := make(map[string]string, len(items))
	for _, item := range items {
		if err := itemRepo.Create(ctx, &item); err != nil {
			log.Printf("Failed to create item %s: %v", item.Name, err)
			continue
		}
		byName[item.Name] = item.ID
	}
	log.Printf("Seeded %d canonical items", len(byName))

	// 2. Seed curated aliases. These are spellings seen on real reports.
	aliases := []struct {
		alias     string
		canonical string
		hint      string
	}{
		{"W.B.C.", "WBC", "printed with periods"},
		{"White Blood Cell Count", "WBC", ""},
		{"Leukocytes", "WBC", ""},
		{"HGB", "Hemoglobin", ""},
		{"Hgb", "Hemoglobin", ""},
		{"HCT", "Hematocrit", ""},
		{"PLT", "Platelets", ""},
		{"Platelet Count", "Platelets", ""},
		{"B.U.N.", "BUN", "printed with periods"},
		{"Urea Nitrogen", "BUN", ""},
		{"CRE", "Creatinine", ""},
		{"CREA", "Creatinine", ""},
		{"GLU", "Glucose", ""},
		{"FBS", "Glucose", "fasting blood sugar"},
		{"A1C", "HbA1c", ""},
		{"GPT", "ALT", "older enzyme name"},
		{"GOT", "AST", "older enzyme name"},
		{"T-BIL", "Total Bilirubin", ""},
		{"ALB", "Albumin", ""},
		{"T-CHO", "Total Cholesterol", ""},
		{"TG", "Triglycerides", ""},
		{"HDL-C", "HDL", ""},
		{"LDL-C", "LDL", ""},
		{"Na", "Sodium", ""},
		{"K", "Potassium", ""},
	}

	seeded := 0
	for _, a := range aliases {
		canonicalID, ok := byName[a.canonical]
		if !ok {
			continue
		}
		entry := &entities.AliasEntry{
			Alias:       a.alias,
			CanonicalID: canonicalID,
			SourceHint:  a.hint,
		}
		if err := aliasRepo.Create(ctx, entry); err != nil {
			log.Printf("Failed to create alias %s: %v", a.alias, err)
			continue
		}
		seeded++
	}
	log.Printf("Seeded %d aliases", seeded)
}
