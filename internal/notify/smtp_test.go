package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"

	"visabulletin/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestSMTPSender(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping smtp container test in short mode")
	}

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "haravich/fake-smtp-server",
			ExposedPorts: []string{"1025/tcp", "1080/tcp"},
			WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
		},
	})
	if err != nil {
		t.Skipf("no container provider available: %v", err)
	}
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	smtpPort, err := container.MappedPort(ctx, "1025/tcp")
	require.NoError(t, err)
	webPort, err := container.MappedPort(ctx, "1080/tcp")
	require.NoError(t, err)

	sender := NewSMTPSender(SMTPConfig{
		Server:   host,
		Port:     smtpPort.Int(),
		From:     "bulletin@example.com",
		Password: "default",
	}, telemetry.NewRecorder())

	msg, err := NewComposer("").Compose(Recipient{
		Email:            "user@example.com",
		Categories:       []string{"EB-3"},
		UnsubscribeToken: "tok123",
	}, testResult(), testSnapshot())
	require.NoError(t, err)
	require.NoError(t, sender.Send(ctx, msg))

	res, err := resty.New().R().
		Get(fmt.Sprintf("http://%s:%d/messages/1.plain", host, webPort.Int()))
	require.NoError(t, err)
	require.Contains(t, res.String(), "EB-3")
}
