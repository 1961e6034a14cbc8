package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"storyserver/auth"                  //JWTの署名鍵
	"storyserver/database"              //PostgreSQLとRedisの初期化
	"storyserver/middlewares"           //トークン認証
	"storyserver/multiplayer/actions"   //ルーム操作と選択肢の集計
	"storyserver/multiplayer/generator" //ストーリー生成サービスのクライアント
	"storyserver/multiplayer/storage"   //ルームとストーリーの保存先
	"storyserver/screens"               //HTTPハンドラー
	"storyserver/utils"                 //ロガーの初期化とCronジョブ

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func main() {
	logger, err := utils.InitLogger() // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	config, err := database.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
	}
	auth.SetSecret(config.JWTSecret)

	// 非同期でPostgreSQLとRedisの初期化
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan bool)

	go func() {
		var err error
		db, err = database.InitPostgreSQL(config, logger)
		if err != nil {
			logger.Fatal("PostgreSQLの初期化に失敗しました", zap.Error(err))
		}
		if err := database.Migrate(db); err != nil {
			logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
		}
		done <- true
	}()

	go func() {
		var err error
		rdb, err = database.InitRedis(config, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		done <- true
	}()

	// 2つの初期化が完了するのを待つ
	<-done
	<-done

	cache := storage.NewRedisRoomCache(rdb, storage.DefaultCacheTTL)
	notifier := storage.NewRedisNotifier(rdb)
	svc := &actions.Service{
		Rooms:     storage.NewNotifyingRooms(storage.NewPostgresRooms(db), cache, notifier, logger),
		Stories:   storage.NewPostgresStories(db),
		Generator: generator.NewHTTPGenerator(config.GeneratorURL, time.Duration(config.GeneratorTimeout)*time.Second),
		Cache:     cache,
		Copies:    storage.NewRedisCopyQueue(rdb),
		Chat:      actions.NewChatLimiter(rate.Limit(1), 5),
		Logger:    logger,
	}

	// クーロンスケジューラのセットアップと呼び出し
	scheduler, err := utils.StartCronJobs(svc, svc.Chat, logger)
	if err != nil {
		logger.Fatal("Cronジョブの登録に失敗しました", zap.Error(err))
	}
	defer scheduler.Stop()

	router := gin.New()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	corsConfig := cors.Config{
		AllowOrigins:     config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(corsConfig))

	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range corsConfig.AllowOrigins {
				if allowed == origin {
					return true
				}
			}
			return false
		},
	}

	//各HTTPリクエストのルーティング
	screens.RegisterRoutes(router, svc, notifier, upgrader, middlewares.AuthMiddleware(logger), logger)

	srv := &http.Server{
		Addr:    config.ListenAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Listening", zap.String("addr", config.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to run HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
