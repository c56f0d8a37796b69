package services

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrArtifactLoad はモデル/前処理ファイルが読めなかったことを示す。プロセスの寿命の間キャッシュされる。
var ErrArtifactLoad = errors.New("model artifact could not be loaded")

// ModelProvider はモデル成果物を一度だけ読み込み、以後は読み取り専用で共有する。
// 起動時にパイプラインへ注入する。
type ModelProvider struct {
	modelPath        string
	preprocessorPath string
	logger           *zap.Logger

	once   sync.Once
	bundle *ModelBundle
	err    error
}

// NewModelProvider は遅延読み込みのプロバイダを作る
func NewModelProvider(modelPath, preprocessorPath string, logger *zap.Logger) *ModelProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelProvider{
		modelPath:        modelPath,
		preprocessorPath: preprocessorPath,
		logger:           logger,
	}
}

// NewStaticModelProvider wraps an already-built bundle.
func NewStaticModelProvider(bundle *ModelBundle) *ModelProvider {
	p := &ModelProvider{bundle: bundle, logger: zap.NewNop()}
	p.once.Do(func() {})
	return p
}

// Get は読み込み済みの成果物を返す。失敗した場合は同じエラーを返し続ける（再試行しない）。
func (p *ModelProvider) Get() (*ModelBundle, error) {
	p.once.Do(p.load)
	return p.bundle, p.err
}

func (p *ModelProvider) load() {
	artifact, clf, err := LoadModelArtifact(p.modelPath)
	if err != nil {
		p.err = fmt.Errorf("%w: %s: %v", ErrArtifactLoad, p.modelPath, err)
		p.logger.Error("model load failed", zap.String("path", p.modelPath), zap.Error(err))
		return
	}

	bundle := &ModelBundle{Artifact: artifact, Classifier: clf}
	if p.preprocessorPath != "" {
		scaler, err := LoadPreprocessor(p.preprocessorPath)
		if err == nil {
			err = scaler.Compatible(artifact.Columns)
		}
		if err != nil {
			p.err = fmt.Errorf("%w: %s: %v", ErrArtifactLoad, p.preprocessorPath, err)
			p.logger.Error("preprocessor load failed", zap.String("path", p.preprocessorPath), zap.Error(err))
			return
		}
		bundle.Preprocessor = scaler
	}

	p.bundle = bundle
	p.logger.Info("model loaded",
		zap.String("path", p.modelPath),
		zap.String("name", artifact.Name),
		zap.String("type", artifact.Model.Type),
		zap.Int("columns", len(artifact.Columns)),
		zap.Bool("preprocessor", bundle.Preprocessor != nil),
	)
}
