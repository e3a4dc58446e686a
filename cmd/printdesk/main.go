package main

import (
	"context"
	"os"
	"time"

	"github.com/jkuat-robotics/printdesk/internal/config"
	"github.com/jkuat-robotics/printdesk/internal/db"
	"github.com/jkuat-robotics/printdesk/internal/email"
	"github.com/jkuat-robotics/printdesk/internal/handlers"
	"github.com/jkuat-robotics/printdesk/internal/mpesa"
	"github.com/jkuat-robotics/printdesk/internal/reconcile"
	"github.com/jkuat-robotics/printdesk/internal/router"
	"github.com/jkuat-robotics/printdesk/internal/storage"
)

const recoveryInterval = 5 * time.Minute

func main() {
	conf, err := config.NewConfig()
	if err != nil {
		panic(err)
	}

	database, err := db.NewDatabase(conf.DatabaseDSN)
	if err != nil {
		panic(err)
	}

	if err := os.MkdirAll(conf.UploadDir, 0o755); err != nil {
		panic(err)
	}

	files, err := storage.NewBucket(
		conf.StorageEndpoint, conf.StorageAccessKey, conf.StorageSecretKey, conf.StorageUseSSL, conf.StorageBucket)
	if err != nil {
		panic(err)
	}

	payments := mpesa.NewClient(
		conf.MpesaBaseURL, conf.MpesaKey, conf.MpesaSecret, conf.MpesaShortcode, conf.MpesaPasskey)

	mail := email.NewSender(
		conf.SMTPHost, conf.SMTPPort, conf.SMTPUser, conf.SMTPPassword, conf.EmailFrom, conf.PrintPrice)

	reconciler := reconcile.NewReconciler(database, files, mail)
	reconciler.RunRecovery(context.Background(), recoveryInterval)

	handlerSet := handlers.NewHandlerSet(database, payments, files, reconciler, conf)

	r := router.NewRouter(conf, handlerSet)

	err = r.ListenAndServe()
	if err != nil {
		panic(err)
	}

}
