// Package seed loads a deterministic demo data set: borrowers at different
// pipeline stages, financials, conditions, and a small regulatory corpus.
// Seeding is idempotent; a second run reports already_seeded and writes
// nothing.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/domain"
	"github.com/homelend/platform/internal/kb"
	"github.com/homelend/platform/internal/storage"
	"github.com/homelend/platform/pkg/postgres"
)

// sentinelSubject marks a seeded database. Its presence short-circuits any
// later run.
const sentinelSubject = "demo-sarah-001"

// Result reports what seeding did.
type Result struct {
	Status       string `json:"status"` // "seeded" or "already_seeded"
	Applications int    `json:"applications,omitempty"`
	Borrowers    int    `json:"borrowers,omitempty"`
	KBChunks     int    `json:"kb_chunks,omitempty"`
}

// Seeder loads demo data.
type Seeder struct {
	pool   *pgxpool.Pool
	audit  *audit.Service
	kb     *kb.Service // nil skips corpus ingestion
	logger *slog.Logger
}

// NewSeeder wires the seeder.
func NewSeeder(pool *pgxpool.Pool, auditSvc *audit.Service, kbSvc *kb.Service, logger *slog.Logger) *Seeder {
	return &Seeder{pool: pool, audit: auditSvc, kb: kbSvc, logger: logger}
}

type demoBorrower struct {
	subject    string
	email      string
	name       string
	employment domain.EmploymentStatus
	income     int64
	debts      int64
	credit     int
	loanType   domain.LoanType
	amount     int64
	value      int64
	stage      domain.Stage
}

var demoBorrowers = []demoBorrower{
	{sentinelSubject, "sarah@example.com", "Sarah Chen", domain.EmploymentW2, 10000, 3000, 745, domain.LoanConventional30, 300000, 400000, domain.StageApplication},
	{"demo-marcus-002", "marcus@example.com", "Marcus Webb", domain.EmploymentSelfEmployed, 14000, 6500, 688, domain.LoanJumbo, 850000, 1100000, domain.StageUnderwriting},
	{"demo-elena-003", "elena@example.com", "Elena Rodriguez", domain.EmploymentW2, 7200, 2100, 702, domain.LoanFHA, 240000, 275000, domain.StageProcessing},
	{"demo-ray-004", "ray@example.com", "Ray Okafor", domain.EmploymentRetired, 5400, 900, 770, domain.LoanConventional15, 180000, 320000, domain.StageInquiry},
}

// Run seeds the database unless the sentinel borrower already exists.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	_, err := storage.NewBorrowerRepo(s.pool).GetBySubject(ctx, sentinelSubject)
	switch {
	case err == nil:
		return &Result{Status: "already_seeded"}, nil
	case err != domain.ErrNotFound:
		return nil, err
	}

	result := &Result{Status: "seeded"}
	err = postgres.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		for _, d := range demoBorrowers {
			if err := s.seedBorrower(ctx, tx, d); err != nil {
				return fmt.Errorf("seed: %s: %w", d.subject, err)
			}
			result.Borrowers++
			result.Applications++
		}
		_, err := s.audit.AppendTx(ctx, tx, audit.Entry{
			EventType: domain.EventSeed,
			UserID:    "system",
			UserRole:  "admin",
			EventData: map[string]any{
				"borrowers":    result.Borrowers,
				"applications": result.Applications,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.kb != nil {
		n, err := s.seedCorpus(ctx)
		if err != nil {
			// Embeddings need a live inference endpoint; demo data stands
			// without the corpus.
			s.logger.Warn("kb corpus seeding skipped", "error", err)
		} else {
			result.KBChunks = n
		}
	}
	return result, nil
}

func (s *Seeder) seedBorrower(ctx context.Context, tx pgx.Tx, d demoBorrower) error {
	borrowerRepo := storage.NewBorrowerRepo(tx)
	appRepo := storage.NewApplicationRepo(tx)
	finRepo := storage.NewFinancialsRepo(tx)

	borrower, err := borrowerRepo.EnsureForSubject(ctx, d.subject, d.email, d.name)
	if err != nil {
		return err
	}
	employment := d.employment
	if err := borrowerRepo.UpdateFields(ctx, borrower.ID, map[string]any{
		"employment_status": employment,
	}); err != nil {
		return err
	}

	loanType := d.loanType
	amount := decimal.NewFromInt(d.amount)
	value := decimal.NewFromInt(d.value)
	addr := fmt.Sprintf("%d Demo Lane", 100+d.amount%900)
	app := &domain.Application{
		Stage:           d.stage,
		LoanType:        &loanType,
		PropertyAddress: &addr,
		LoanAmount:      &amount,
		PropertyValue:   &value,
	}
	if err := appRepo.Create(ctx, app); err != nil {
		return err
	}
	if err := appRepo.AddBorrower(ctx, app.ID, borrower.ID, true); err != nil {
		return err
	}

	income := decimal.NewFromInt(d.income)
	debts := decimal.NewFromInt(d.debts)
	credit := d.credit
	fin := &domain.ApplicationFinancials{
		ApplicationID:      app.ID,
		BorrowerID:         borrower.ID,
		GrossMonthlyIncome: &income,
		MonthlyDebts:       &debts,
		CreditScore:        &credit,
	}
	fin.DTIRatio = domain.AggregateDTI([]domain.ApplicationFinancials{*fin})
	if err := finRepo.Upsert(ctx, fin); err != nil {
		return err
	}

	if d.stage == domain.StageUnderwriting {
		cond := &domain.Condition{
			ApplicationID: app.ID,
			Description:   "Provide year-to-date profit and loss statement",
			Severity:      domain.SeverityPriorToApproval,
			Status:        domain.ConditionOpen,
			IssuedBy:      "system",
		}
		if err := storage.NewConditionRepo(tx).Create(ctx, cond); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedCorpus(ctx context.Context) (int, error) {
	existing, err := s.kb.ChunkCount(ctx)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := s.kb.Ingest(ctx, "ATR/QM Overview", "seed",
		atrqmCorpus); err != nil {
		return 0, err
	}
	if _, err := s.kb.Ingest(ctx, "TRID Timing Requirements", "seed",
		tridCorpus); err != nil {
		return 0, err
	}
	return s.kb.ChunkCount(ctx)
}

const atrqmCorpus = `The Ability-to-Repay rule requires a creditor to make a reasonable, good-faith determination that the consumer can repay the loan. A Qualified Mortgage receives a safe harbor when the debt-to-income ratio does not exceed 43 percent and income is verified with third-party records.

Between 43 and 50 percent DTI a loan may still close under a rebuttable presumption of compliance, provided the documentation file is complete. Above 50 percent the loan cannot be treated as a Qualified Mortgage.`

const tridCorpus = `Under the TILA-RESPA Integrated Disclosure rule, the Loan Estimate must be delivered or placed in the mail no later than three business days after receipt of a completed application.

The Closing Disclosure must be received by the consumer at least three business days before consummation. A re-disclosure restarts the waiting period when the APR changes beyond tolerance, the loan product changes, or a prepayment penalty is added.`
