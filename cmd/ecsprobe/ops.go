package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"

	"github.com/emcecs/ecs-go-client/s3"
)

func splitPair(spec string) (string, string, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected <a>:<b>, got %q", spec)
	}
	return parts[0], parts[1], nil
}

func doList(ctx context.Context, client *s3.Client, bucket, prefix string) int {
	objects, prefixes, err := client.ListAll(ctx, bucket, s3.ListOptions{Prefix: prefix})
	if err != nil {
		glog.Errorf("ecsprobe: list %s/%s: %v", bucket, prefix, err)
		return 1
	}
	for _, p := range prefixes {
		fmt.Printf("%-12s %s\n", "PREFIX", p)
	}
	for _, o := range objects {
		fmt.Printf("%-12d %s\n", o.Size, o.Key)
	}
	return 0
}

func doCreate(ctx context.Context, client *s3.Client, bucket, spec string) int {
	localPath, key, err := splitPair(spec)
	if err != nil {
		glog.Errorf("ecsprobe: -create: %v", err)
		return 2
	}
	f, err := os.Open(localPath)
	if err != nil {
		glog.Errorf("ecsprobe: opening %s: %v", localPath, err)
		return 1
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		glog.Errorf("ecsprobe: stat %s: %v", localPath, err)
		return 1
	}

	info, err := client.Put(ctx, bucket, key, f, stat.Size(), s3.PutOptions{})
	if err != nil {
		glog.Errorf("ecsprobe: put %s/%s: %v", bucket, key, err)
		return 1
	}
	fmt.Printf("uploaded %s/%s etag=%s\n", bucket, key, info.ETag)
	return 0
}

func doRead(ctx context.Context, client *s3.Client, bucket, spec string) int {
	key, localPath, err := splitPair(spec)
	if err != nil {
		glog.Errorf("ecsprobe: -read: %v", err)
		return 2
	}
	body, info, err := client.Get(ctx, bucket, key)
	if err != nil {
		glog.Errorf("ecsprobe: get %s/%s: %v", bucket, key, err)
		return 1
	}
	if err := os.WriteFile(localPath, body, 0o644); err != nil {
		glog.Errorf("ecsprobe: writing %s: %v", localPath, err)
		return 1
	}
	fmt.Printf("downloaded %s/%s (%d bytes) -> %s\n", bucket, key, info.ContentLength, localPath)
	return 0
}

func doDelete(ctx context.Context, client *s3.Client, bucket, key string) int {
	if err := client.Delete(ctx, bucket, key, ""); err != nil {
		glog.Errorf("ecsprobe: delete %s/%s: %v", bucket, key, err)
		return 1
	}
	fmt.Printf("deleted %s/%s\n", bucket, key)
	return 0
}

func doReadMeta(ctx context.Context, client *s3.Client, bucket, key string) int {
	info, err := client.Head(ctx, bucket, key)
	if err != nil {
		glog.Errorf("ecsprobe: head %s/%s: %v", bucket, key, err)
		return 1
	}
	fmt.Printf("Content-Length: %d\n", info.ContentLength)
	fmt.Printf("ETag: %s\n", info.ETag)
	fmt.Printf("Last-Modified: %s\n", info.LastModified)
	fmt.Printf("Content-Type: %s\n", info.ContentType)
	for k, v := range info.UserMetadata {
		fmt.Printf("x-amz-meta-%s: %s\n", k, v)
	}
	return 0
}
