package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finco/settlement/common"
	"finco/settlement/operations"
	"finco/settlement/routes"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"github.com/gin-gonic/gin"
)

var ginLambda *ginadapter.GinLambda

// setup complete app routers
func setupRouter(handlers *operations.Handlers) *gin.Engine {

	router := gin.Default()

	common.SetupCustomValidators()

	router.Use(common.CORSMiddleware())

	routes.RouteHandler(router, handlers)

	return router
}

func main() {
	app := &cli.App{
		Name:  "settlement",
		Usage: "sponsored multisig swap settlement server",
		Commands: []*cli.Command{
			serveCmd,
			sponsorCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the settlement API",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "port",
			Usage:   "listen port, overrides server.port",
			EnvVars: []string{"FUNCTIONS_CUSTOMHANDLER_PORT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		env := common.GetENVVars()
		cfg, err := common.LoadConfig(env)
		if err != nil {
			return err
		}
		common.SetupLogging(cfg.Log, env.WorkingEnvironment == "production")

		ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := newApplication(ctx, env, cfg)
		if err != nil {
			return err
		}
		defer app.Close(context.Background())

		go app.service.RunSweeper(ctx, cfg.Settlement.SweepInterval)

		router := setupRouter(operations.NewHandlers(app.service))

		if env.GinMode == "release" {
			log.Info("running aws lambda in aws")
			ginLambda = ginadapter.New(router)
			lambda.StartWithOptions(AWSHandler, lambda.WithContext(ctx))
			return nil
		}

		port := cfg.Server.Port
		if cctx.String("port") != "" {
			port = cctx.String("port")
		}
		server := &http.Server{Addr: ":" + port, Handler: router}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		log.Info(fmt.Sprintf("** Service Started on Port %s **", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

var sponsorCmd = &cli.Command{
	Name:  "sponsor",
	Usage: "print the fee payer address members must fund",
	Action: func(cctx *cli.Context) error {
		env := common.GetENVVars()
		cfg, err := common.LoadConfig(env)
		if err != nil {
			return err
		}
		key, err := loadSponsor(env, cfg.Sponsor)
		if err != nil {
			return err
		}
		fmt.Fprintln(cctx.App.Writer, key.PublicKey().String())
		return nil
	},
}

func AWSHandler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, request)
}
