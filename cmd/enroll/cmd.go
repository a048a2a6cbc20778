package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/example/edu-admin/internal/apiclient"
	"github.com/example/edu-admin/internal/enrollment"
	"github.com/example/edu-admin/internal/logging"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// api is the subset of the HTTP client the commands use.
type api interface {
	enrollment.FaceService
	Login(ctx context.Context, email, password string) (string, error)
	RecognizeFace(ctx context.Context, image []byte) (*apiclient.Recognition, error)
	Dashboard(ctx context.Context, orgID string) (*apiclient.Dashboard, error)
	CreateStudent(ctx context.Context, s *apiclient.Student) (*apiclient.Student, error)
	CreateStaff(ctx context.Context, s *apiclient.Staff) (*apiclient.Staff, error)
}

type commandLine struct {
	out       io.Writer
	newClient func(baseURL, token string, logger *zap.Logger) (api, error)
}

// connection holds the flags shared by every subcommand.
type connection struct {
	baseURL string
	token   string
	verbose bool
	timeout time.Duration
}

func (c *connection) register(fs *flag.FlagSet) {
	fs.StringVar(&c.baseURL, "api", envOr("EDU_API_URL", "http://localhost:8000"), "Base URL of the edu-admin API.")
	fs.StringVar(&c.token, "token", os.Getenv("EDU_API_TOKEN"), "Bearer token (defaults to $EDU_API_TOKEN).")
	fs.BoolVar(&c.verbose, "v", false, "Verbose logging.")
	fs.DurationVar(&c.timeout, "timeout", 2*time.Minute, "Overall command timeout.")
}

func newAPIClient(baseURL, token string, logger *zap.Logger) (api, error) {
	return apiclient.New(baseURL, apiclient.WithToken(token), apiclient.WithLogger(logger))
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -email EMAIL                                     - sign in; the password is prompted and the token printed")
	fmt.Fprintln(cli.out, "  enroll -type student|staff -id ID (-frames DIR | -snapshot URL) [-slots N] [-bind] [-save -org ORG -name NAME -email EMAIL]")
	fmt.Fprintln(cli.out, "                                                         - capture, verify and upload face images")
	fmt.Fprintln(cli.out, "  recognize -image FILE                                  - match an image against enrolled faces")
	fmt.Fprintln(cli.out, "  dashboard -org ORG                                     - print an organization's totals")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	var conn connection

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	conn.register(loginCmd)
	loginEmail := loginCmd.String("email", "", "Administrator email. The password will be prompted next.")

	enrollCmd := flag.NewFlagSet("enroll", flag.ContinueOnError)
	conn.register(enrollCmd)
	var enroll enrollOptions
	enroll.register(enrollCmd)

	recognizeCmd := flag.NewFlagSet("recognize", flag.ContinueOnError)
	conn.register(recognizeCmd)
	recognizeImage := recognizeCmd.String("image", "", "JPEG or PNG image to recognize.")

	dashboardCmd := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	conn.register(dashboardCmd)
	dashboardOrg := dashboardCmd.String("org", "", "Organization id.")

	for _, fs := range []*flag.FlagSet{loginCmd, enrollCmd, recognizeCmd, dashboardCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginEmail == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.withClient(conn, func(ctx context.Context, client api) error {
			return cli.login(ctx, client, *loginEmail, string(pwd))
		})
	case "enroll":
		if err := enrollCmd.Parse(args[2:]); err != nil {
			return err
		}
		if err := enroll.validate(); err != nil {
			fmt.Fprintln(cli.out, err)
			enrollCmd.Usage()
			return errHelp
		}
		return cli.withClient(conn, func(ctx context.Context, client api) error {
			return cli.enroll(ctx, client, enroll)
		})
	case "recognize":
		if err := recognizeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *recognizeImage == "" {
			recognizeCmd.Usage()
			return errHelp
		}
		return cli.withClient(conn, func(ctx context.Context, client api) error {
			return cli.recognize(ctx, client, *recognizeImage)
		})
	case "dashboard":
		if err := dashboardCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *dashboardOrg == "" {
			dashboardCmd.Usage()
			return errHelp
		}
		return cli.withClient(conn, func(ctx context.Context, client api) error {
			return cli.dashboard(ctx, client, *dashboardOrg)
		})
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) withClient(conn connection, fn func(ctx context.Context, client api) error) error {
	logger, err := logging.NewConsoleLogger(conn.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	client, err := cli.newClient(conn.baseURL, conn.token, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, conn.timeout)
	defer cancel()

	return fn(ctx, client)
}

func (cli *commandLine) login(ctx context.Context, client api, email, password string) error {
	token, err := client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func (cli *commandLine) recognize(ctx context.Context, client api, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rec, err := client.RecognizeFace(ctx, data)
	if err != nil {
		return err
	}
	if rec.Status != "recognized" {
		fmt.Fprintf(cli.out, "status: %s\n", rec.Status)
		return nil
	}
	fmt.Fprintf(cli.out, "status: %s\n%s: %s\nconfidence: %.2f\n", rec.Status, rec.IDType, rec.Identifier, rec.Confidence)
	if rec.ImageURL != "" {
		fmt.Fprintf(cli.out, "image: %s\n", rec.ImageURL)
	}
	return nil
}

func (cli *commandLine) dashboard(ctx context.Context, client api, orgID string) error {
	d, err := client.Dashboard(ctx, orgID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "students: %d\nstaff: %d\ndepartments: %d\nclasses: %d\n",
		d.TotalStudents, d.TotalStaff, d.TotalDepartments, d.TotalClasses)
	for _, dept := range d.DepartmentData {
		fmt.Fprintf(cli.out, "  %-24s %d\n", dept.Name, dept.Students)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
