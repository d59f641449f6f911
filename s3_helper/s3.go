package s3_helper

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/danthegoodman1/icetx/gologger"
	"github.com/danthegoodman1/icetx/utils"
	"github.com/rs/zerolog"
)

var (
	logger = gologger.NewLogger()

	ErrBadArchiveKey = utils.PermError("bad archive key")
)

const (
	StateSuffix      = ".txn"
	TranscriptSuffix = ".json"
	ManifestSuffix   = ".parquet"
)

func newSession() (*session.Session, error) {
	s3Config := &aws.Config{
		Region:      aws.String(utils.AWS_DEFAULT_REGION),
		Credentials: credentials.NewEnvCredentials(),
	}
	if utils.S3_ENDPOINT != "" {
		s3Config.Endpoint = aws.String(utils.S3_ENDPOINT)
		s3Config.S3ForcePathStyle = aws.Bool(true)
	}

	s3Session, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("error making new session: %w", err)
	}
	return s3Session, nil
}

// ArchiveKey names one archived txn of table. Keys sort by archive time.
func ArchiveKey(table string, txn uint64) string {
	return path.Join(utils.S3_PREFIX, table, utils.GenKSortedID("")+"_"+strconv.FormatUint(txn, 10))
}

// ParseArchiveKey returns the table and txn an archive key was made for.
func ParseArchiveKey(key string) (table string, txn uint64, err error) {
	key = strings.TrimSuffix(key, StateSuffix)
	dir, base := path.Split(key)
	table = path.Base(strings.TrimSuffix(dir, "/"))
	i := strings.LastIndexByte(base, '_')
	if i < 0 || table == "." || table == "" {
		return "", 0, fmt.Errorf("%q: %w", key, ErrBadArchiveKey)
	}
	txn, err = strconv.ParseUint(base[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%q: %w", key, ErrBadArchiveKey)
	}
	return table, txn, nil
}

func WriteBytesToS3(ctx context.Context, fileName string, b []byte, contentType *string) (*s3manager.UploadOutput, error) {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	s3Session, err := newSession()
	if err != nil {
		return nil, err
	}
	uploader := s3manager.NewUploader(s3Session)

	s := time.Now()
	output, err := uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(utils.S3_BUCKET_NAME),
		Key:         aws.String(fileName),
		Body:        bytes.NewReader(b),
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("error uploading to s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("fileName", fileName).Int("bytes", len(b)).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("uploaded file to s3")
	return output, nil
}

func ReadBytesFromS3(ctx context.Context, fileName string) ([]byte, error) {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	s3Session, err := newSession()
	if err != nil {
		return nil, err
	}
	downloader := s3manager.NewDownloader(s3Session)

	buf := &aws.WriteAtBuffer{}
	s := time.Now()
	_, err = downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(utils.S3_BUCKET_NAME),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return nil, fmt.Errorf("error downloading from s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("fileName", fileName).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("downloaded file from s3")
	return buf.Bytes(), nil
}
