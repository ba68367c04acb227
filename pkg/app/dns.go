package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/whatslukewarm/feedgen/pkg/config"
	"github.com/whatslukewarm/feedgen/pkg/secrets"
	"github.com/whatslukewarm/feedgen/pkg/util"
)

const (
	ECSClusterName = "feedgen"
	ECSServiceName = "server"
)

// Point the feed's DNS record at the public IP of the newest ECS server
// task. Fargate tasks get a fresh IP on every deploy, and a load balancer is
// overkill for a single-task feed generator.
func updateServiceDNS(cfg config.Config) error {
	ip, err := findTaskPublicIP()
	if err != nil {
		return err
	}
	slog.Info("found public ip address", "ip", ip)

	sm, err := secrets.New()
	if err != nil {
		return util.WrapErr("failed to create secrets client", err)
	}
	token, err := sm.GetCloudflareAPIToken()
	if err != nil {
		return util.WrapErr("failed to read cloudflare api token", err)
	}
	zoneID, err := sm.GetCloudflareZoneID()
	if err != nil {
		return util.WrapErr("failed to read cloudflare zone id", err)
	}

	return updateDNSRecord(cfg.Hostname, ip, zoneID, token)
}

// findTaskPublicIP queries AWS for the public IP of the most recently
// started ECS server task.
func findTaskPublicIP() (string, error) {
	cfg, err := awsConfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return "", util.WrapErr("failed to load aws config", err)
	}
	ecsClient := ecs.NewFromConfig(cfg)
	ec2Client := ec2.NewFromConfig(cfg)

	taskARNs, err := ecsClient.ListTasks(context.Background(), &ecs.ListTasksInput{
		Cluster:     aws.String(ECSClusterName),
		ServiceName: aws.String(ECSServiceName),
	})
	if err != nil {
		return "", util.WrapErr("failed to list ecs tasks", err)
	}
	if len(taskARNs.TaskArns) == 0 {
		return "", errors.New("no ecs tasks found")
	}

	tasks, err := ecsClient.DescribeTasks(context.Background(), &ecs.DescribeTasksInput{
		Cluster: aws.String(ECSClusterName),
		Tasks:   taskARNs.TaskArns,
	})
	if err != nil {
		return "", util.WrapErr("failed to describe ecs tasks", err)
	}
	if len(tasks.Tasks) == 0 {
		return "", errors.New("no ecs tasks found")
	}

	sort.Slice(tasks.Tasks, func(i, j int) bool {
		return tasks.Tasks[i].StartedAt.After(*tasks.Tasks[j].StartedAt)
	})

	eniID := ""
	for _, attachment := range tasks.Tasks[0].Attachments {
		for _, detail := range attachment.Details {
			if detail.Name != nil && *detail.Name == "networkInterfaceId" {
				eniID = *detail.Value
				break
			}
		}
	}
	if eniID == "" {
		return "", errors.New("failed to find eni id in task attachments")
	}

	eni, err := ec2Client.DescribeNetworkInterfaces(context.Background(), &ec2.DescribeNetworkInterfacesInput{
		NetworkInterfaceIds: []string{eniID},
	})
	if err != nil {
		return "", util.WrapErr("failed to describe network interface", err)
	}
	if len(eni.NetworkInterfaces) == 0 || eni.NetworkInterfaces[0].Association == nil || eni.NetworkInterfaces[0].Association.PublicIp == nil {
		return "", errors.New("failed to find public ip address in network interface")
	}

	return *eni.NetworkInterfaces[0].Association.PublicIp, nil
}

// updateDNSRecord sets the existing A record for the hostname to the given
// IP via the Cloudflare API.
func updateDNSRecord(hostname, ip, zoneID, token string) error {
	recordID, err := getDNSRecordID(hostname, zoneID, token)
	if err != nil {
		return err
	}

	reqBody, _ := json.Marshal(map[string]interface{}{
		"type":    "A",
		"name":    hostname,
		"content": ip,
		"ttl":     1,
		"proxied": true,
		"comment": "Managed by feedgen",
	})
	url := fmt.Sprintf("https://api.cloudflare.com/client/v4/zones/%s/dns_records/%s", zoneID, recordID)
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(reqBody))
	if err != nil {
		return util.WrapErr("failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return util.WrapErr("failed to update dns record", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("failed to update dns record: " + resp.Status)
	}

	return nil
}

func getDNSRecordID(hostname, zoneID, token string) (string, error) {
	url := fmt.Sprintf("https://api.cloudflare.com/client/v4/zones/%s/dns_records?type=A&name=%s", zoneID, hostname)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", util.WrapErr("failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", util.WrapErr("failed to send request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New("failed to get dns record: " + resp.Status)
	}

	var data struct {
		Result []struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", util.WrapErr("failed to decode response body", err)
	}
	if len(data.Result) == 0 {
		return "", errors.New("no dns records found")
	}

	return data.Result[0].ID, nil
}
