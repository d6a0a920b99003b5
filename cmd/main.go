package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"poscore/internal/adapter/logger"
	"poscore/internal/adapter/postgres"
	"poscore/internal/adapter/rabbitmq"
	"poscore/internal/adapter/ws"
	"poscore/internal/app/approval"
	"poscore/internal/app/display"
	"poscore/internal/app/kds"
	"poscore/internal/app/tender"
	"poscore/internal/config"
	"poscore/internal/domain"
	"poscore/internal/interfaces"

	amqpAdapter "poscore/internal/adapter/amqp"
	httpAdapter "poscore/internal/adapter/http"
)

func main() {
	// Parse command-line flags
	mode := flag.String("mode", "", "Process mode: terminal, kds-display, customer-display")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	zoneID := flag.String("zone", "", "Zone ID (for kds-display)")
	qcStation := flag.Bool("qc", false, "Zone is a QC station (for kds-display)")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	lgr := logger.New(*mode)

	switch *mode {
	case "terminal":
		runTerminal(ctx, cfg, lgr)

	case "kds-display":
		if *zoneID == "" {
			log.Fatal("--zone is required for kds-display mode")
		}
		runKDSDisplay(ctx, cfg, lgr, *zoneID, *qcStation)

	case "customer-display":
		runCustomerDisplay(ctx, cfg, lgr)

	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}
}

func runTerminal(ctx context.Context, cfg *config.Config, lgr logger.Logger) {
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	if err := postgres.InitSchema(ctx, db); err != nil {
		log.Fatalf("Failed to init schema: %v", err)
	}

	lgr.Info("db_connected", "Connected to settlement journal", "startup", map[string]interface{}{
		"host": cfg.Database.Host,
		"db":   cfg.Database.Database,
	})

	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": cfg.RabbitMQ.Host,
	})

	journal := postgres.NewSettlementRepository(db)
	backend := httpAdapter.NewBackendClient(cfg.Backend.BaseURL, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second, lgr)
	terminal := httpAdapter.NewTerminalClient(cfg.Backend.BaseURL, lgr)

	gate := approval.NewGate()
	orchestrator := tender.NewService(backend, terminal, gate, journal, lgr, cfg.Tender.SurchargeRate)

	bridge := display.NewBridge(amqpAdapter.NewDisplayPublisher(mqConn), lgr, 0)
	defer bridge.Close()
	orchestrator.SetOnChange(bridge.Update)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tips := amqpAdapter.NewTipConsumer(mqConn)
	go func() {
		err := tips.ConsumeTips(runCtx, func(ctx context.Context, amount decimal.Decimal) error {
			return orchestrator.SetTip(ctx, amount)
		})
		if err != nil && runCtx.Err() == nil {
			lgr.Error("tip_consumer_stopped", "Tip consumer exited", "runtime", nil, err)
		}
	}()

	lgr.Info("service_started", "Terminal started", "startup", nil)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint
		lgr.Info("shutdown_initiated", "Shutting down terminal", "shutdown", nil)
		cancel()
	}()

	commandLoop(runCtx, orchestrator, gate)
}

// commandLoop is the operator driver: one line per tender event. The real
// register UI speaks the same orchestrator API.
func commandLoop(ctx context.Context, orchestrator *tender.Service, gate *approval.Gate) {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "order":
			if len(fields) != 3 {
				err = fmt.Errorf("usage: order <number> <total>")
				break
			}
			var total decimal.Decimal
			total, err = decimal.NewFromString(fields[2])
			if err != nil {
				break
			}
			order := &domain.Order{Number: fields[1], Status: domain.OrderOpen, CreatedAt: time.Now()}
			order.Items = []domain.OrderItem{{Name: "Sale", Quantity: 1, PriceAtSale: total}}
			orchestrator.LoadOrder(order)

		case "tender":
			err = orchestrator.OpenTender()
		case "cash":
			err = withAmount(fields, func(amount decimal.Decimal) error {
				if selErr := orchestrator.SelectPaymentMethod(ctx, domain.MethodCash); selErr != nil {
					return selErr
				}
				return orchestrator.ApplyCashPayment(ctx, amount)
			})
		case "card":
			err = orchestrator.SelectPaymentMethod(ctx, domain.MethodCard)
		case "tip":
			err = withAmount(fields, func(amount decimal.Decimal) error {
				return orchestrator.SetTip(ctx, amount)
			})
		case "gift":
			if len(fields) != 3 {
				err = fmt.Errorf("usage: gift <token> <amount>")
				break
			}
			var amount decimal.Decimal
			amount, err = decimal.NewFromString(fields[2])
			if err != nil {
				break
			}
			if selErr := orchestrator.SelectPaymentMethod(ctx, domain.MethodGiftCard); selErr != nil {
				err = selErr
				break
			}
			err = orchestrator.ApplyGiftCardPayment(ctx, fields[1], amount)
		case "platform":
			if len(fields) != 2 {
				err = fmt.Errorf("usage: platform <id>")
				break
			}
			if selErr := orchestrator.SelectPaymentMethod(ctx, domain.MethodDeliveryPlatform); selErr != nil {
				err = selErr
				break
			}
			err = orchestrator.SelectDeliveryPlatform(ctx, fields[1])
		case "split":
			err = withAmount(fields, func(amount decimal.Decimal) error {
				if selErr := orchestrator.SelectPaymentMethod(ctx, domain.MethodSplit); selErr != nil {
					return selErr
				}
				return orchestrator.EnterSplitAmount(amount)
			})
		case "discount":
			if len(fields) != 3 {
				err = fmt.Errorf("usage: discount <amount> <operator>")
				break
			}
			var amount decimal.Decimal
			amount, err = decimal.NewFromString(fields[1])
			if err != nil {
				break
			}
			err = orchestrator.ApplyDiscount(ctx, amount, fields[2], "register discount")
		case "refund":
			if len(fields) != 4 {
				err = fmt.Errorf("usage: refund <item> <qty> <operator>")
				break
			}
			var itemID, qty int
			if itemID, err = strconv.Atoi(fields[1]); err != nil {
				break
			}
			if qty, err = strconv.Atoi(fields[2]); err != nil {
				break
			}
			err = orchestrator.RefundItems(ctx, itemID, qty, fields[3])
		case "void":
			if len(fields) != 2 {
				err = fmt.Errorf("usage: void <operator>")
				break
			}
			err = orchestrator.VoidOrder(ctx, fields[1])
		case "approve", "reject":
			if len(fields) != 3 {
				err = fmt.Errorf("usage: %s <request-id> <approver>", fields[0])
				break
			}
			err = gate.Deliver(interfaces.ApprovalDecision{
				RequestID: fields[1],
				Approved:  fields[0] == "approve",
				DecidedBy: fields[2],
			})
		case "pending":
			for _, id := range orchestrator.PendingApprovals() {
				fmt.Println(id)
			}
		case "retry":
			err = orchestrator.RetryFailedPayment(ctx)
		case "back":
			err = orchestrator.GoBack()
		case "cancel":
			err = orchestrator.CloseTender()
		case "new":
			err = orchestrator.StartNewOrder()
		case "quit":
			return
		default:
			err = fmt.Errorf("unknown command %q", fields[0])
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		} else if session := orchestrator.Session(); session != nil {
			fmt.Printf("state=%s balance=%s\n", session.State, session.BalanceDue.StringFixed(2))
		}
	}
}

func withAmount(fields []string, fn func(decimal.Decimal) error) error {
	if len(fields) != 2 {
		return fmt.Errorf("usage: %s <amount>", fields[0])
	}
	amount, err := decimal.NewFromString(fields[1])
	if err != nil {
		return err
	}
	return fn(amount)
}

func runKDSDisplay(ctx context.Context, cfg *config.Config, lgr logger.Logger, zoneID string, qcStation bool) {
	zoneType := domain.ZoneKitchen
	if qcStation {
		zoneType = domain.ZoneQC
	}

	channel := ws.NewChannel(cfg.KDS.BaseURL, zoneID, ws.Options{
		Heartbeat:   time.Duration(cfg.KDS.HeartbeatSeconds) * time.Second,
		MaxAttempts: cfg.KDS.MaxReconnects,
		ZoneType:    zoneType,
		IsQCStation: qcStation,
	}, lgr)

	service := kds.NewService(channel, lgr)
	service.SetOnUpdate(func(state kds.ZoneState) {
		board := domain.CategorizeZone(state.Data)
		counts := make(map[string]interface{}, len(board))
		for category, orders := range board {
			counts[string(category)] = len(orders)
		}
		lgr.Info("zone_board_updated", "Zone board changed", zoneID, counts)
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint
		lgr.Info("shutdown_initiated", "Shutting down zone display", "shutdown", nil)
		cancel()
	}()

	lgr.Info("service_started", fmt.Sprintf("KDS display for zone %s started", zoneID), "startup", map[string]interface{}{
		"zone": zoneID,
		"qc":   qcStation,
	})

	if err := service.Run(runCtx); err != nil && runCtx.Err() == nil {
		lgr.Error("zone_display_stopped", "Zone display exited", "runtime", nil, err)
	}
}

func runCustomerDisplay(ctx context.Context, cfg *config.Config, lgr logger.Logger) {
	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint
		lgr.Info("shutdown_initiated", "Shutting down customer display", "shutdown", nil)
		cancel()
	}()

	lgr.Info("service_started", "Customer display started", "startup", nil)

	consumer := amqpAdapter.NewStateConsumer(mqConn)
	err = consumer.ConsumeState(runCtx, func(ctx context.Context, p interfaces.DisplayProjection) {
		fmt.Printf("order=%s state=%s due=%s\n", p.OrderNumber, p.TenderState, p.AmountDue.StringFixed(2))
	})
	if err != nil && runCtx.Err() == nil {
		lgr.Error("state_consumer_stopped", "State consumer exited", "runtime", nil, err)
	}
}
