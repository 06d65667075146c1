package config

import (
	"bytes"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/spf13/viper"
)

// S3Source identifies a YAML config object in S3, used instead of a local
// file when NIGHTDRIVER_CONFIG_S3_BUCKET is set.
type S3Source struct {
	Region string
	Bucket string
	Key    string
}

// LoadFromS3 fetches src.Key from src.Bucket and parses it exactly as Load
// parses a local file, applying the same defaults and environment
// overrides.
func LoadFromS3(src S3Source) (*Config, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(src.Region)})
	if err != nil {
		return nil, fmt.Errorf("config: aws session: %w", err)
	}
	client := s3.New(sess)

	out, err := client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(src.Bucket),
		Key:    aws.String(src.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("config: fetch s3://%s/%s: %w", src.Bucket, src.Key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("config: read s3://%s/%s: %w", src.Bucket, src.Key, err)
	}

	cfg, err := parseConfigYAML(body)
	if err != nil {
		return nil, fmt.Errorf("config: s3://%s/%s: %w", src.Bucket, src.Key, err)
	}
	return cfg, nil
}

// parseConfigYAML applies defaults, parses raw YAML bytes, then delegates
// to unmarshalAndValidate for environment overrides and validation. The S3
// source funnels through this once it has its bytes in hand; Load reads its
// local file through viper and calls unmarshalAndValidate directly.
func parseConfigYAML(body []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return unmarshalAndValidate(v)
}
