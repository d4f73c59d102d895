package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const stopGrace = 5 * time.Second

func homeDir() (string, error) {
	if v := os.Getenv("RIV_HOME"); v != "" {
		return v, nil
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(h, ".rivulet"), nil
}

func pidFilePath() (string, error) {
	base, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "rivulet.pid"), nil
}

func logFilePath() (string, error) {
	base, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "rivulet.log"), nil
}

func readPID() (int, error) {
	p, err := pidFilePath()
	if err != nil {
		return 0, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

func writePID(pid int) error {
	p, err := pidFilePath()
	if err != nil {
		return err
	}
	return os.WriteFile(p, []byte(strconv.Itoa(pid)), 0o644)
}

func removePIDFile() {
	if p, err := pidFilePath(); err == nil {
		_ = os.Remove(p)
	}
}

// isRunning probes pid with signal 0. EPERM means the process exists but belongs
// to someone else.
func isRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func startDaemon() error {
	home, err := homeDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	if pid, err := readPID(); err == nil && isRunning(pid) {
		return fmt.Errorf("rivulet already running (pid %d)", pid)
	}

	logPath, err := logFilePath()
	if err != nil {
		return err
	}
	lf, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer lf.Close()
	_, _ = io.WriteString(lf, time.Now().Format(time.RFC3339)+" starting rivulet daemon\n")

	bin, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.Command(bin, "server")
	cmd.Stdout = lf
	cmd.Stderr = lf
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	if err := writePID(cmd.Process.Pid); err != nil {
		return err
	}
	fmt.Printf("rivulet started in background (pid %d), logs: %s\n", cmd.Process.Pid, logPath)
	return nil
}

func stopDaemon() error {
	pid, err := readPID()
	if err != nil {
		return fmt.Errorf("cannot read pid file: %w", err)
	}
	if !isRunning(pid) {
		removePIDFile()
		fmt.Println("rivulet is not running")
		return nil
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return err
	}
	deadline := time.Now().Add(stopGrace)
	for time.Now().Before(deadline) {
		if !isRunning(pid) {
			removePIDFile()
			fmt.Println("rivulet stopped")
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}
	_ = syscall.Kill(pid, syscall.SIGKILL)
	removePIDFile()
	fmt.Println("rivulet force-stopped")
	return nil
}

func statusDaemon() error {
	pid, err := readPID()
	if err != nil {
		fmt.Println("rivulet not running (no pid file)")
		return nil
	}
	if !isRunning(pid) {
		fmt.Printf("rivulet not running (stale pid %d)\n", pid)
		removePIDFile()
		return nil
	}
	logPath, _ := logFilePath()
	fmt.Printf("rivulet running (pid %d), logs: %s\n", pid, logPath)
	return nil
}
