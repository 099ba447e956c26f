package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchsync/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

func (v configVar[T]) bind() {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

var (
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
		usage:        "Server port",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	serveDir = configVar[string]{
		envKey:       "SERVER_SERVE_DIR",
		flagKey:      "serve-dir",
		defaultValue: "",
		usage:        "Directory with the web client, not served when empty",
	}
	roomGlob = configVar[string]{
		envKey:       "SERVER_ROOM_GLOB",
		flagKey:      "room-glob",
		defaultValue: "rooms/*.toml",
		usage:        "Glob matching room definition files",
	}
	inboundQueueSize = configVar[int]{
		envKey:       "SERVER_INBOUND_QUEUE_SIZE",
		flagKey:      "inbound-queue-size",
		defaultValue: 64,
		usage:        "Events a room buffers before senders block",
	}
	outboundQueueSize = configVar[int]{
		envKey:       "SERVER_OUTBOUND_QUEUE_SIZE",
		flagKey:      "outbound-queue-size",
		defaultValue: 64,
		usage:        "Messages a watcher buffers before it is dropped",
	}
	decorate = configVar[bool]{
		envKey:       "SERVER_DECORATE",
		flagKey:      "decorate",
		defaultValue: true,
		usage:        "Prefix display names with a random emoji",
	}
	preloadRooms = configVar[bool]{
		envKey:       "SERVER_PRELOAD_ROOMS",
		flagKey:      "preload-rooms",
		defaultValue: false,
		usage:        "Start every room defined on disk at startup",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "",
		usage:        "Redis host, definitions are read only when empty",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
)

func loadAppConfig() *app.AppConfig {
	// a missing .env is fine
	_ = godotenv.Load()

	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.String(serveDir.flagKey, serveDir.defaultValue, serveDir.usage)
	pflag.String(roomGlob.flagKey, roomGlob.defaultValue, roomGlob.usage)
	pflag.Int(inboundQueueSize.flagKey, inboundQueueSize.defaultValue, inboundQueueSize.usage)
	pflag.Int(outboundQueueSize.flagKey, outboundQueueSize.defaultValue, outboundQueueSize.usage)
	pflag.Bool(decorate.flagKey, decorate.defaultValue, decorate.usage)
	pflag.Bool(preloadRooms.flagKey, preloadRooms.defaultValue, preloadRooms.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	host.bind()
	port.bind()
	logLevel.bind()
	serveDir.bind()
	roomGlob.bind()
	inboundQueueSize.bind()
	outboundQueueSize.bind()
	decorate.bind()
	preloadRooms.bind()
	redisHost.bind()
	redisPort.bind()
	redisPassword.bind()

	return &app.AppConfig{
		Host:              viper.GetString(host.flagKey),
		Port:              viper.GetInt(port.flagKey),
		LogLevel:          viper.GetString(logLevel.flagKey),
		ServeDir:          viper.GetString(serveDir.flagKey),
		RoomGlob:          viper.GetString(roomGlob.flagKey),
		InboundQueueSize:  viper.GetInt(inboundQueueSize.flagKey),
		OutboundQueueSize: viper.GetInt(outboundQueueSize.flagKey),
		Decorate:          viper.GetBool(decorate.flagKey),
		PreloadRooms:      viper.GetBool(preloadRooms.flagKey),
		RedisHost:         viper.GetString(redisHost.flagKey),
		RedisPort:         viper.GetInt(redisPort.flagKey),
		RedisPassword:     viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
