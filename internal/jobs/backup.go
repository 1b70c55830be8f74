package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dkravets/keychat/internal/cryptox"
	"github.com/dkravets/keychat/internal/logging"
	"github.com/dkravets/keychat/internal/vault"
)

// BackupConfig carries the object storage settings for the backup job.
type BackupConfig struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Interval     time.Duration
}

// Backup periodically exports the vault, encrypts the dump with the
// content cipher and uploads it to S3-compatible storage. Plaintext
// never leaves the process.
type Backup struct {
	vault      *vault.Service
	cipher     *cryptox.Cipher
	encryptKey string
	cfg        BackupConfig
	log        logging.Logger
	stopCh     chan struct{}
	doneCh     chan struct{}
}

func NewBackup(v *vault.Service, cipher *cryptox.Cipher, encryptKey string, cfg BackupConfig, logger logging.Logger) *Backup {
	return &Backup{
		vault:      v,
		cipher:     cipher,
		encryptKey: encryptKey,
		cfg:        cfg,
		log:        logger,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

func (b *Backup) Start(ctx context.Context) {
	go b.loop(ctx)
}

func (b *Backup) Stop() {
	close(b.stopCh)
	<-b.doneCh
}

func (b *Backup) loop(ctx context.Context) {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-ticker.C:
			if err := b.runOnce(ctx); err != nil {
				b.log.Error(ctx, "backup failed", "error", err)
			}
		}
	}
}

func (b *Backup) runOnce(ctx context.Context) error {
	entries, err := b.vault.Export(ctx)
	if err != nil {
		return fmt.Errorf("failed to export vault: %w", err)
	}

	dump, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal dump: %w", err)
	}

	encrypted, err := b.cipher.Encrypt(string(dump), b.encryptKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt dump: %w", err)
	}

	key := storageKey()
	if err := b.upload(ctx, key, encrypted); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	b.log.Info(ctx, "backup uploaded", "key", key, "entries", len(entries))
	return nil
}

func storageKey() string {
	d := time.Now()
	return fmt.Sprintf("backups/%d/%02d/%02d/%v.enc", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (b *Backup) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(b.cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			b.cfg.AccessKey,
			b.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if b.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(b.cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (b *Backup) upload(ctx context.Context, key, body string) error {
	client, err := b.client(ctx)
	if err != nil {
		return err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(body),
		ContentType: aws.String("application/octet-stream"),
	})
	return err
}
