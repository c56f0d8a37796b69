package handler

import (
	"context"
	"log"
	"net/http"
	"sync"

	config "churn-predict-api/configs"
	"churn-predict-api/pkg/server"

	"github.com/gin-gonic/gin"
)

var (
	app     *gin.Engine
	once    sync.Once
	initErr error
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (*gin.Engine, error) {
	once.Do(func() {
		log.Printf("🟢 [setupApp] Initializing Gin application")

		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()

		a, err := server.New(context.Background(), cfg)
		if err != nil {
			initErr = err
			log.Printf("❌ [setupApp] 初期化に失敗: %v", err)
			return
		}
		app = a.Engine
		log.Printf("🟢 [setupApp] Application ready")
	})
	return app, initErr
}

// Handler はVercelのエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	engine, err := setupApp()
	if err != nil {
		http.Error(w, "service unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	engine.ServeHTTP(w, r)
}
