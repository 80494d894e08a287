package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// ==================== file_list ====================

func TestHandleFileList_Success(t *testing.T) {
	mock := NewMockPanelApp()
	mock.ListFilesResult = []FileEntry{
		{Name: "DCIM", Path: "/sdcard/DCIM", IsDir: true},
		{Name: "notes.txt", Path: "/sdcard/notes.txt", Size: 12, ModTime: "2024-01-29 08:01"},
	}
	server := NewMCPServer(mock)

	result, err := server.handleFileList(context.Background(), makeToolRequest(map[string]interface{}{
		"device_id": "device1",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(text, "/sdcard (2 entries)") {
		t.Errorf("Expected default android directory, got: %s", text)
	}
	if !strings.Contains(text, "DCIM/") || !strings.Contains(text, "notes.txt  12 bytes") {
		t.Errorf("Expected both entries, got: %s", text)
	}

	call := mock.GetLastCallByMethod("ListFiles")
	if call == nil || call.Args[0] != "device1" || call.Args[1] != "/sdcard" {
		t.Errorf("ListFiles call = %+v", call)
	}
}

func TestHandleFileList_IOSDefaultsToRoot(t *testing.T) {
	mock := NewMockPanelApp()
	mock.Platform = "ios"
	server := NewMCPServer(mock)

	result, _ := server.handleFileList(context.Background(), makeToolRequest(nil))
	if got := getTextContent(result); got != "/ is empty" {
		t.Errorf("got %q", got)
	}
}

func TestHandleFileList_Error(t *testing.T) {
	mock := NewMockPanelApp()
	mock.ListFilesError = errors.New("no device selected")
	server := NewMCPServer(mock)

	result, err := server.handleFileList(context.Background(), makeToolRequest(map[string]interface{}{"path": "/data"}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("Expected an error result")
	}
}

// ==================== file_push / file_pull ====================

func TestHandleFilePush(t *testing.T) {
	mock := NewMockPanelApp()
	server := NewMCPServer(mock)

	if _, err := server.handleFilePush(context.Background(), makeToolRequest(map[string]interface{}{"local_path": "/tmp/a"})); err == nil {
		t.Error("Expected error for missing remote_path")
	}

	result, err := server.handleFilePush(context.Background(), makeToolRequest(map[string]interface{}{
		"local_path":  "/tmp/a.txt",
		"remote_path": "/sdcard/a.txt",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := getTextContent(result); got != "Uploaded /tmp/a.txt to /sdcard/a.txt" {
		t.Errorf("got %q", got)
	}
}

func TestHandleFilePull_DefaultDestination(t *testing.T) {
	mock := NewMockPanelApp()
	mock.PullFilePath = "/data/downloads/a.txt"
	server := NewMCPServer(mock)

	result, err := server.handleFilePull(context.Background(), makeToolRequest(map[string]interface{}{
		"remote_path": "/sdcard/a.txt",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := getTextContent(result); got != "Downloaded /sdcard/a.txt to /data/downloads/a.txt" {
		t.Errorf("got %q", got)
	}
}

// ==================== file_delete ====================

func TestHandleFileDelete(t *testing.T) {
	mock := NewMockPanelApp()
	server := NewMCPServer(mock)

	result, err := server.handleFileDelete(context.Background(), makeToolRequest(map[string]interface{}{
		"device_id":   "device1",
		"remote_path": "/sdcard/old",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := getTextContent(result); got != "Deleted /sdcard/old" {
		t.Errorf("got %q", got)
	}
	if call := mock.GetLastCallByMethod("DeleteFile"); call == nil || call.Args[1] != "/sdcard/old" {
		t.Errorf("DeleteFile call = %+v", call)
	}

	mock.DeleteFileError = errors.New("rm: Permission denied")
	result, _ = server.handleFileDelete(context.Background(), makeToolRequest(map[string]interface{}{"remote_path": "/system"}))
	if !result.IsError {
		t.Error("Expected an error result")
	}
}
