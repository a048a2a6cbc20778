package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/example/edu-admin/internal/apiclient"
	"github.com/example/edu-admin/internal/camera"
	"github.com/example/edu-admin/internal/enrollment"
)

type enrollOptions struct {
	idType     string
	identifier string
	frames     string
	snapshot   string
	slots      int
	bind       bool

	save  bool
	org   string
	name  string
	email string
}

func (o *enrollOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.idType, "type", "", "Record type: student or staff.")
	fs.StringVar(&o.identifier, "id", "", "Roll number (student) or employee id (staff).")
	fs.StringVar(&o.frames, "frames", "", "Directory of JPEG/PNG frames used as the camera.")
	fs.StringVar(&o.snapshot, "snapshot", "", "URL of an HTTP camera snapshot endpoint.")
	fs.IntVar(&o.slots, "slots", enrollment.MaxSlots, "Number of capture slots to fill (1-4).")
	fs.BoolVar(&o.bind, "bind", false, "Bind each image to the identifier present at capture time.")
	fs.BoolVar(&o.save, "save", false, "Also create the student or staff record.")
	fs.StringVar(&o.org, "org", "", "Organization id, required with -save.")
	fs.StringVar(&o.name, "name", "", "Full name, required with -save.")
	fs.StringVar(&o.email, "email", "", "Email, required with -save for students.")
}

func (o *enrollOptions) validate() error {
	switch {
	case o.idType != "student" && o.idType != "staff":
		return errors.New("-type must be student or staff")
	case o.identifier == "":
		return errors.New("-id is required")
	case (o.frames == "") == (o.snapshot == ""):
		return errors.New("exactly one of -frames or -snapshot is required")
	case o.slots < 1 || o.slots > enrollment.MaxSlots:
		return fmt.Errorf("-slots must be between 1 and %d", enrollment.MaxSlots)
	case o.save && (o.org == "" || o.name == ""):
		return errors.New("-save needs -org and -name")
	}
	return nil
}

type frameCamera interface {
	enrollment.FrameSource
	Close() error
}

func (o *enrollOptions) openCamera() (frameCamera, error) {
	if o.frames != "" {
		return camera.OpenDirectory(o.frames)
	}
	return camera.NewSnapshot(o.snapshot, 5*time.Second), nil
}

func (cli *commandLine) enroll(ctx context.Context, client api, o enrollOptions) error {
	cam, err := o.openCamera()
	if err != nil {
		return err
	}
	defer cam.Close()

	opts := []enrollment.FormOption{enrollment.WithSlots(o.slots)}
	if o.bind {
		opts = append(opts, enrollment.WithBoundIdentifier())
	}
	if o.save {
		opts = append(opts, enrollment.WithRecordSaver(recordSaver(client, o)))
	}

	form := enrollment.NewForm(o.idType, client, opts...)
	defer form.Close()
	form.SetIdentifier(o.identifier)

	for i := 0; i < o.slots; i++ {
		ok, err := form.Capture(ctx, i, cam)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		status, err := form.Verify(ctx, i)
		if err != nil {
			return err
		}
		if status == enrollment.StatusVerified {
			if _, err := form.Upload(ctx, i); err != nil {
				return err
			}
		}
	}

	var saveErr error
	if o.save {
		saveErr = form.Save(ctx)
	}

	snaps := form.Snapshots()
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tSTATUS\tSIZE\tMESSAGE")
	uploaded := 0
	for _, s := range snaps {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", s.Index+1, s.Status, s.Size, s.Message)
		if s.Message == "Uploaded" {
			uploaded++
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d of %d images uploaded for %s %s\n", uploaded, len(snaps), o.idType, o.identifier)

	if saveErr != nil {
		return fmt.Errorf("save %s record: %w", o.idType, saveErr)
	}
	if o.save {
		fmt.Fprintf(cli.out, "%s record saved\n", o.idType)
	}
	return nil
}

func recordSaver(client api, o enrollOptions) enrollment.RecordSaver {
	return enrollment.RecordSaverFunc(func(ctx context.Context, idType, identifier string) error {
		if idType == "staff" {
			_, err := client.CreateStaff(ctx, &apiclient.Staff{
				OrganizationID: o.org,
				EmployeeID:     identifier,
				FullName:       o.name,
				Email:          o.email,
			})
			return err
		}
		_, err := client.CreateStudent(ctx, &apiclient.Student{
			OrganizationID: o.org,
			RollNumber:     identifier,
			FullName:       o.name,
			Email:          o.email,
		})
		return err
	})
}
