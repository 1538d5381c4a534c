package training

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"blackline/internal/detect"
	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
)

const (
	// minExamples is the floor below which a run aborts without
	// registering anything.
	minExamples = 25

	maxEpochs = 30
	patience  = 10

	// Minibatch size compounds from batchStart towards batchCap.
	batchStart    = 4.0
	batchCap      = 32.0
	batchCompound = 1.001

	devFraction = 0.2
)

// Trainer fits a new span model from the collected corpus and registers
// it, inactive, alongside its provenance.
type Trainer struct {
	collector    *Collector
	modelRepo    repositories.ModelRepository
	runRepo      repositories.TrainingRunRepository
	trainingDocs repositories.TrainingDocumentRepository
	txManager    repositories.TransactionManager
	modelsDir    string
	logger       *slog.Logger

	now func() time.Time
	rng *rand.Rand
}

// NewTrainer creates a trainer writing model files under modelsDir.
func NewTrainer(
	collector *Collector,
	modelRepo repositories.ModelRepository,
	runRepo repositories.TrainingRunRepository,
	trainingDocs repositories.TrainingDocumentRepository,
	txManager repositories.TransactionManager,
	modelsDir string,
	logger *slog.Logger,
) *Trainer {
	return &Trainer{
		collector:    collector,
		modelRepo:    modelRepo,
		runRepo:      runRepo,
		trainingDocs: trainingDocs,
		txManager:    txManager,
		modelsDir:    modelsDir,
		logger:       logger,
		now:          time.Now,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Train runs one full training cycle for the given source selection.
// Returns domain.ErrInsufficientData when fewer than the minimum
// number of examples can be collected; nothing is registered in that
// case.
func (t *Trainer) Train(ctx context.Context, source models.TrainingSource) (*models.Model, error) {
	collected, err := t.collector.Collect(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(collected.Examples) < minExamples {
		return nil, fmt.Errorf("%w: %d examples, need %d",
			domain.ErrInsufficientData, len(collected.Examples), minExamples)
	}

	train, dev := t.split(t.align(collected.Examples))
	if len(train) == 0 || len(dev) == 0 {
		return nil, fmt.Errorf("%w: corpus too small to split after alignment",
			domain.ErrInsufficientData)
	}

	name := fmt.Sprintf("model_%s", t.now().UTC().Format("20060102_150405"))
	outDir := filepath.Join(t.modelsDir, name)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir %s: %w", outDir, err)
	}
	modelPath := filepath.Join(outDir, "model.json")

	best, err := t.fit(train, dev, modelPath)
	if err != nil {
		// A failed run leaves no artifacts behind.
		os.RemoveAll(outDir)
		return nil, err
	}

	rec := &models.Model{
		Name:      name,
		Path:      modelPath,
		IsActive:  false,
		Precision: &best.Precision,
		Recall:    &best.Recall,
		F1Score:   &best.F1,
	}
	err = t.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := t.modelRepo.Create(txCtx, rec); err != nil {
			return err
		}
		run := &models.TrainingRun{
			ModelID:             rec.ID,
			Source:              source,
			TrainingDocumentIDs: collected.TrainingDocumentIDs,
			CaseDocumentIDs:     collected.CaseDocumentIDs,
		}
		if err := t.runRepo.Create(txCtx, run); err != nil {
			return err
		}
		for _, docID := range collected.TrainingDocumentIDs {
			doc, err := t.trainingDocs.GetByID(txCtx, docID)
			if err != nil {
				return err
			}
			doc.Processed = true
			doc.ExtractedText = collected.FrozenTexts[docID]
			if err := t.trainingDocs.Update(txCtx, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		os.RemoveAll(outDir)
		return nil, fmt.Errorf("register trained model: %w", err)
	}

	t.logger.Info("training run complete",
		"model", name,
		"precision", best.Precision,
		"recall", best.Recall,
		"f1", best.F1,
	)
	return rec, nil
}

// align snaps every annotation to token boundaries. Spans that contain
// no whole token cannot be learned and are dropped.
func (t *Trainer) align(examples []detect.Example) []detect.Example {
	kept, dropped := 0, 0
	out := make([]detect.Example, 0, len(examples))
	for _, ex := range examples {
		tokens := detect.Tokenize(ex.Text)
		var spans []detect.Span
		for _, sp := range ex.Spans {
			start, end, ok := detect.AlignToTokens(tokens, sp.Start, sp.End)
			if !ok {
				dropped++
				continue
			}
			kept++
			spans = append(spans, detect.Span{
				Text:  ex.Text[start:end],
				Label: sp.Label,
				Start: start,
				End:   end,
			})
		}
		if len(spans) > 0 {
			out = append(out, detect.Example{Text: ex.Text, Spans: spans})
		}
	}
	t.logger.Info("annotations aligned to token boundaries", "kept", kept, "dropped", dropped)
	return out
}

func (t *Trainer) split(examples []detect.Example) (train, dev []detect.Example) {
	shuffled := make([]detect.Example, len(examples))
	copy(shuffled, examples)
	t.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	cut := len(shuffled) - int(float64(len(shuffled))*devFraction)
	if cut == len(shuffled) {
		cut--
	}
	return shuffled[:cut], shuffled[cut:]
}

// fit runs the epoch loop: minibatch updates with a compounding batch
// size, dev evaluation each epoch, checkpoint on F1 improvement, early
// stop after patience epochs without one. When the score never leaves
// zero the final state is saved anyway so the run still produces a
// loadable model.
func (t *Trainer) fit(train, dev []detect.Example, modelPath string) (detect.Metrics, error) {
	model := detect.NewSpanModel([]string{detect.LabelThirdParty, detect.LabelOperational})

	var best detect.Metrics
	bestEpoch := -1
	batch := batchStart

	for epoch := 0; epoch < maxEpochs; epoch++ {
		loss := model.Update(t.rng, train, int(batch))
		for i := 0; i < len(train); i++ {
			batch *= batchCompound
			if batch > batchCap {
				batch = batchCap
				break
			}
		}

		metrics := model.Evaluate(dev)
		t.logger.Debug("epoch finished",
			"epoch", epoch, "loss", loss, "dev_f1", metrics.F1, "batch", int(batch))

		if metrics.F1 > best.F1 {
			best = metrics
			bestEpoch = epoch
			if err := model.Save(modelPath); err != nil {
				return detect.Metrics{}, err
			}
		}
		if epoch-bestEpoch >= patience {
			t.logger.Info("early stopping", "epoch", epoch, "best_epoch", bestEpoch)
			break
		}
	}

	if bestEpoch == -1 {
		// No epoch beat zero. Persist the final state rather than
		// failing the run with nothing on disk.
		if err := model.Save(modelPath); err != nil {
			return detect.Metrics{}, err
		}
		best = model.Evaluate(dev)
		t.logger.Warn("dev score never improved, saved final model state", "f1", best.F1)
	}
	return best, nil
}
