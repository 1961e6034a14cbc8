package main

import (
	"go.uber.org/zap"

	"storyserver/database"
)

var logger *zap.Logger

func init() {
	var err error
	// Zapのロガーを設定
	logger, err = zap.NewProduction()
	if err != nil {
		panic(err)
	}
}

// rooms と stories テーブルを作成・更新する
func main() {
	defer logger.Sync() // ロガーの終了処理

	config, err := database.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
	}

	gormDB, err := database.InitPostgreSQL(config, logger)
	if err != nil {
		logger.Fatal("データベースへの接続に失敗しました", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("SQLDBの取得に失敗しました", zap.Error(err))
	}
	defer sqlDB.Close() // SQLDBを閉じる

	// マイグレーションを実行
	if err := database.Migrate(gormDB); err != nil {
		logger.Fatal("Error migrating tables", zap.Error(err))
	}
	logger.Info("Room and Story tables migrated successfully")
}
