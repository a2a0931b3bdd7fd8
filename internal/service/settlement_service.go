package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports"
	"eromax-ledger/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Job names used in locks, run summaries and metrics.
const (
	JobDaily   = "daily"
	JobPickups = "pickups"
)

// invoiceCodeAttempts bounds code regeneration after ErrCodeTaken.
const invoiceCodeAttempts = 3

// errAlreadyInvoiced marks a group another run invoiced between our check and our insert.
var errAlreadyInvoiced = errors.New("group already invoiced")

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	parcelRepo   ports.ParcelRepository
	invoiceRepo  ports.InvoiceRepository
	walletRepo   ports.WalletRepository
	transferRepo ports.TransferRepository
	notifier     ports.Notifier
	lock         ports.JobLock
	transactor   ports.Transactor
	fragileFee   decimal.Decimal
	lockTTL      time.Duration
	loc          *time.Location
	log          zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl. Days are cut in loc.
func NewSettlementService(
	parcelRepo ports.ParcelRepository,
	invoiceRepo ports.InvoiceRepository,
	walletRepo ports.WalletRepository,
	transferRepo ports.TransferRepository,
	notifier ports.Notifier,
	lock ports.JobLock,
	transactor ports.Transactor,
	fragileFee decimal.Decimal,
	lockTTL time.Duration,
	loc *time.Location,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		parcelRepo:   parcelRepo,
		invoiceRepo:  invoiceRepo,
		walletRepo:   walletRepo,
		transferRepo: transferRepo,
		notifier:     notifier,
		lock:         lock,
		transactor:   transactor,
		fragileFee:   fragileFee,
		lockTTL:      lockTTL,
		loc:          loc,
		log:          log,
	}
}

// RunDaily invoices the day's delivered and refused parcels per store and per
// courier, crediting store wallets with the client invoice net. Re-running a
// day is a no-op for parcels already invoiced.
func (s *SettlementServiceImpl) RunDaily(ctx context.Context, day time.Time) (*ports.SettlementRun, error) {
	return s.run(ctx, JobDaily, day, s.settleDaily)
}

// RunPickups records the day's picked-up parcels per store. It moves no money.
func (s *SettlementServiceImpl) RunPickups(ctx context.Context, day time.Time) (*ports.SettlementRun, error) {
	return s.run(ctx, JobPickups, day, s.settlePickups)
}

func (s *SettlementServiceImpl) run(
	ctx context.Context,
	job string,
	day time.Time,
	body func(ctx context.Context, run *ports.SettlementRun, from, to time.Time) (map[string]int, error),
) (*ports.SettlementRun, error) {
	from := domain.DayStart(day, s.loc)
	to := from.AddDate(0, 0, 1)
	run := &ports.SettlementRun{Job: job, Day: from, Credited: decimal.Zero}
	log := s.log.With().Str("job", job).Str("day", from.Format("2006-01-02")).Logger()

	lockName := "settlement:" + job + ":" + from.Format("2006-01-02")
	acquired, err := s.lock.Acquire(ctx, lockName, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire settlement lock: %w", err)
	}
	if !acquired {
		log.Info().Msg("settlement already running elsewhere, skipping")
		run.Busy = true
		return run, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
			log.Warn().Err(err).Msg("failed to release settlement lock")
		}
	}()

	start := time.Now()
	invoices, err := body(ctx, run, from, to)
	if err != nil {
		return nil, err
	}
	metrics.RecordSettlement(job, invoices, run.Skipped, run.Failed)

	log.Info().
		Int("groups", run.Groups).
		Int("invoices", run.Invoices).
		Int("skipped", run.Skipped).
		Int("failed", run.Failed).
		Str("credited", run.Credited.String()).
		Dur("took", time.Since(start)).
		Msg("settlement run finished")
	return run, nil
}

func (s *SettlementServiceImpl) settleDaily(ctx context.Context, run *ports.SettlementRun, from, to time.Time) (map[string]int, error) {
	parcels, err := s.parcelRepo.ListSettleable(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list settleable parcels: %w", err)
	}

	byStore := make(map[uuid.UUID][]domain.Colis)
	byLivreur := make(map[uuid.UUID][]domain.Colis)
	for _, c := range parcels {
		invoiced, err := s.invoiceRepo.IsInvoiced(ctx, c.ID, domain.FactureTypeClient)
		if err != nil {
			return nil, fmt.Errorf("check client invoice for parcel %s: %w", c.ID, err)
		}
		if invoiced {
			run.Skipped++
		} else {
			byStore[c.StoreID] = append(byStore[c.StoreID], c)
		}

		if c.LivreurID == nil {
			continue
		}
		invoiced, err = s.invoiceRepo.IsInvoiced(ctx, c.ID, domain.FactureTypeLivreur)
		if err != nil {
			return nil, fmt.Errorf("check livreur invoice for parcel %s: %w", c.ID, err)
		}
		if invoiced {
			run.Skipped++
		} else {
			byLivreur[*c.LivreurID] = append(byLivreur[*c.LivreurID], c)
		}
	}

	invoices := map[string]int{}
	for _, storeID := range sortedKeys(byStore) {
		group := byStore[storeID]
		run.Groups++
		facture, err := s.settleClientGroup(ctx, storeID, from, group)
		if !s.countGroup(run, err, len(group), "store_id", storeID) {
			continue
		}
		invoices[string(domain.FactureTypeClient)]++
		run.Credited = run.Credited.Add(facture.NetAPayer)

		s.notifier.Notify(ctx, storeID,
			"Facture "+facture.Code,
			fmt.Sprintf("%d colis facturés, net à payer %s", len(facture.ColisIDs), facture.NetAPayer.StringFixed(2)))
	}

	for _, livreurID := range sortedKeys(byLivreur) {
		group := byLivreur[livreurID]
		run.Groups++
		_, err := s.settleLivreurGroup(ctx, livreurID, from, group)
		if !s.countGroup(run, err, len(group), "livreur_id", livreurID) {
			continue
		}
		invoices[string(domain.FactureTypeLivreur)]++
	}
	return invoices, nil
}

// settleClientGroup writes the store's invoice, one Deposit transfer per parcel
// and the wallet credit in one scope.
func (s *SettlementServiceImpl) settleClientGroup(ctx context.Context, storeID uuid.UUID, day time.Time, group []domain.Colis) (*domain.Facture, error) {
	var facture *domain.Facture
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		f := s.newFacture(domain.FactureTypeClient, day, group)
		f.StoreID = &storeID
		err := insertWithFreshCode(domain.CodePrefixClient, day, func(code string) error {
			f.Code = code
			return s.invoiceRepo.CreateFacture(ctx, f)
		})
		if err != nil {
			if errors.Is(err, ports.ErrDuplicate) {
				return errAlreadyInvoiced
			}
			return fmt.Errorf("create facture: %w", err)
		}

		wallet, err := s.walletRepo.GetByStoreIDForUpdate(ctx, storeID)
		if err != nil {
			return fmt.Errorf("lock store wallet: %w", err)
		}
		now := time.Now().UTC()
		if wallet == nil {
			wallet, err = domain.NewWallet(storeID, now)
			if err != nil {
				return err
			}
			if err := s.walletRepo.Create(ctx, wallet); err != nil {
				return fmt.Errorf("create store wallet: %w", err)
			}
		}

		for _, c := range group {
			credit := domain.NewTransfer(wallet.ID, domain.TransferTypeDeposit, domain.ParcelNet(c, s.fragileFee), now)
			colisID := c.ID
			credit.ColisID = &colisID
			desc := "facture " + f.Code
			credit.Description = &desc
			if err := s.transferRepo.Create(ctx, credit); err != nil {
				return fmt.Errorf("create settlement transfer: %w", err)
			}
			if err := s.parcelRepo.SetWalletProcessed(ctx, c.ID, true); err != nil {
				return fmt.Errorf("set parcel wallet processed: %w", err)
			}
		}

		wallet.Apply(f.NetAPayer)
		wallet.UpdatedAt = now
		if err := s.walletRepo.Update(ctx, wallet); err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}
		facture = f
		return nil
	})
	return facture, err
}

func (s *SettlementServiceImpl) settleLivreurGroup(ctx context.Context, livreurID uuid.UUID, day time.Time, group []domain.Colis) (*domain.Facture, error) {
	var facture *domain.Facture
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		f := s.newFacture(domain.FactureTypeLivreur, day, group)
		f.LivreurID = &livreurID
		err := insertWithFreshCode(domain.CodePrefixLivreur, day, func(code string) error {
			f.Code = code
			return s.invoiceRepo.CreateFacture(ctx, f)
		})
		if err != nil {
			if errors.Is(err, ports.ErrDuplicate) {
				return errAlreadyInvoiced
			}
			return fmt.Errorf("create facture: %w", err)
		}
		facture = f
		return nil
	})
	return facture, err
}

// newFacture builds an invoice for group; insertWithFreshCode assigns its code.
func (s *SettlementServiceImpl) newFacture(typ domain.FactureType, day time.Time, group []domain.Colis) *domain.Facture {
	totals := domain.ComputeTotals(group, s.fragileFee)
	return &domain.Facture{
		ID:              uuid.New(),
		Type:            typ,
		Day:             day,
		ColisIDs:        colisIDs(group),
		TotalPrix:       totals.TotalPrix,
		TarifLivraison:  totals.TarifLivraison,
		TarifFragile:    totals.TarifFragile,
		TotalTarif:      totals.TotalTarif,
		TotalFraisRefus: totals.TotalFraisRefus,
		NetAPayer:       totals.NetAPayer,
		CreatedAt:       time.Now().UTC(),
	}
}

// insertWithFreshCode generates an invoice code and runs insert, drawing a new
// code while the previous one is already taken.
func insertWithFreshCode(prefix string, day time.Time, insert func(code string) error) error {
	for attempt := 1; ; attempt++ {
		code, err := domain.GenerateInvoiceCode(prefix, day)
		if err != nil {
			return err
		}
		err = insert(code)
		if !errors.Is(err, ports.ErrCodeTaken) || attempt == invoiceCodeAttempts {
			return err
		}
	}
}

func (s *SettlementServiceImpl) settlePickups(ctx context.Context, run *ports.SettlementRun, from, to time.Time) (map[string]int, error) {
	parcels, err := s.parcelRepo.ListPickedUp(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list picked up parcels: %w", err)
	}

	byStore := make(map[uuid.UUID][]domain.Colis)
	for _, c := range parcels {
		invoiced, err := s.invoiceRepo.IsPickupInvoiced(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("check pickup invoice for parcel %s: %w", c.ID, err)
		}
		if invoiced {
			run.Skipped++
			continue
		}
		byStore[c.StoreID] = append(byStore[c.StoreID], c)
	}

	invoices := map[string]int{}
	for _, storeID := range sortedKeys(byStore) {
		group := byStore[storeID]
		run.Groups++
		err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
			f := &domain.FactureRamasser{
				ID:        uuid.New(),
				StoreID:   storeID,
				Day:       from,
				ColisIDs:  colisIDs(group),
				CreatedAt: time.Now().UTC(),
			}
			err := insertWithFreshCode(domain.CodePrefixPickup, from, func(code string) error {
				f.Code = code
				return s.invoiceRepo.CreateFactureRamasser(ctx, f)
			})
			if err != nil {
				if errors.Is(err, ports.ErrDuplicate) {
					return errAlreadyInvoiced
				}
				return fmt.Errorf("create facture ramasser: %w", err)
			}
			return nil
		})
		if !s.countGroup(run, err, len(group), "store_id", storeID) {
			continue
		}
		invoices["pickup"]++
	}
	return invoices, nil
}

// countGroup records a group's outcome on the run and reports whether it committed.
func (s *SettlementServiceImpl) countGroup(run *ports.SettlementRun, err error, size int, key string, id uuid.UUID) bool {
	switch {
	case err == nil:
		run.Invoices++
		return true
	case errors.Is(err, errAlreadyInvoiced):
		run.Skipped += size
	default:
		run.Failed++
		s.log.Error().Err(err).Str("job", run.Job).Str(key, id.String()).Int("parcels", size).Msg("settlement group rolled back")
	}
	return false
}

func colisIDs(group []domain.Colis) []uuid.UUID {
	ids := make([]uuid.UUID, len(group))
	for i, c := range group {
		ids[i] = c.ID
	}
	return ids
}

func sortedKeys(m map[uuid.UUID][]domain.Colis) []uuid.UUID {
	keys := make([]uuid.UUID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
